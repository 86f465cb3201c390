package filestore

import (
	"strings"

	"github.com/koustreak/relgen/internal/errs"
)

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds all settings needed to connect to a file storage backend.
type Config struct {
	Provider Provider

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string

	AccessKey string
	SecretKey string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is used by region-aware backends. Leave empty for MinIO.
	Region string

	// Bucket receives published reports.
	Bucket string
}

// DefaultConfig returns a local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    "relgen",
	}
}

// Validate reports the first setting that keeps a store from connecting.
func (c *Config) Validate() error {
	switch {
	case c == nil:
		return errs.New(errs.ErrKindInvalidArgument, "store config is required")
	case c.Provider != "" && c.Provider != ProviderMinIO:
		return errs.Newf(errs.ErrKindInvalidArgument, "unsupported store provider %q", c.Provider)
	case strings.TrimSpace(c.Endpoint) == "":
		return errs.New(errs.ErrKindInvalidArgument, "store endpoint is required")
	case strings.Contains(c.Endpoint, "://"):
		return errs.Newf(errs.ErrKindInvalidArgument, "store endpoint %q must be host:port without a scheme", c.Endpoint)
	case c.Bucket == "":
		return errs.New(errs.ErrKindInvalidArgument, "store bucket is required")
	}
	return nil
}
