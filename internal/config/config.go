// Package config loads relgen settings from a YAML file, the environment and
// an optional .env file. Later sources win: file, then RELGEN_* variables,
// then command-line flags applied by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/koustreak/relgen/internal/database"
	"github.com/koustreak/relgen/internal/errs"
	"github.com/koustreak/relgen/internal/filestore"
	"github.com/koustreak/relgen/internal/logger"
	"github.com/koustreak/relgen/internal/report"
	"go.yaml.in/yaml/v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RELGEN_"

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Generate GenerateConfig `yaml:"generate"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	TimeFormat string `yaml:"time_format"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	UseSSL    bool          `yaml:"use_ssl"`
	Region    string        `yaml:"region"`
	Bucket    string        `yaml:"bucket"`
	URLTTL    time.Duration `yaml:"url_ttl"`
}

type GenerateConfig struct {
	Format       string   `yaml:"format"`
	Output       string   `yaml:"output"`
	IgnoreTables []string `yaml:"ignore_tables"`
	Workers      int      `yaml:"workers"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	db := database.DefaultConfig("", "")
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        db.MaxConns,
			MinConns:        db.MinConns,
			ConnMaxLifetime: db.MaxConnLifetime,
			ConnMaxIdleTime: db.MaxConnIdleTime,
			ConnectTimeout:  db.ConnectTimeout,
			QueryTimeout:    db.QueryTimeout,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			TimeFormat: "rfc3339",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Bucket: "relgen",
			URLTTL: report.DefaultURLTTL,
		},
		Generate: GenerateConfig{
			Format: string(report.FormatText),
		},
	}
}

// Load reads .env (when present), then the YAML file at path (skipped when
// path is empty), then RELGEN_* variables. The result is not validated.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, errs.Wrap(errs.ErrKindNotFound, fmt.Sprintf("config file %s not found", path), err)
			}
			return nil, errs.Wrap(errs.ErrKindPermissionDenied, fmt.Sprintf("cannot open config file %s", path), err)
		}
		defer f.Close()

		if err := cfg.decode(f); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errs.Wrap(errs.ErrKindInvalidArgument, "failed to load "+path, err)
	}
	return nil
}

// decode overlays the YAML document in r onto c. Unknown keys are errors.
func (c *Config) decode(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return errs.Wrap(errs.ErrKindUnknown, "failed to read config", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(expandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errs.Wrap(errs.ErrKindInvalidArgument, "invalid config file", err)
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} with its value, empty when unset. A bare $ is
// left alone since passwords in DSNs may contain one.
func expandEnv(raw []byte) []byte {
	return envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// applyEnv overlays RELGEN_* variables found through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("DB_SCHEMA", &c.Database.Schema)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("SERVER_ADDR", &c.Server.Addr)
	str("STORE_ENDPOINT", &c.Store.Endpoint)
	str("STORE_ACCESS_KEY", &c.Store.AccessKey)
	str("STORE_SECRET_KEY", &c.Store.SecretKey)
	str("STORE_REGION", &c.Store.Region)
	str("STORE_BUCKET", &c.Store.Bucket)
	str("GENERATE_FORMAT", &c.Generate.Format)
	str("GENERATE_OUTPUT", &c.Generate.Output)

	if v, ok := lookup(EnvPrefix + "STORE_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidArgument, EnvPrefix+"STORE_USE_SSL must be a boolean", err)
		}
		c.Store.UseSSL = b
	}
	if v, ok := lookup(EnvPrefix + "GENERATE_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidArgument, EnvPrefix+"GENERATE_WORKERS must be an integer", err)
		}
		c.Generate.Workers = n
	}
	if v, ok := lookup(EnvPrefix + "IGNORE_TABLES"); ok {
		c.Generate.IgnoreTables = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the settings every command needs. Store settings are
// checked by the publisher when it connects.
func (c *Config) Validate() error {
	if _, err := database.ParseDriver(c.Database.Driver); err != nil {
		return err
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errs.New(errs.ErrKindInvalidArgument, "database dsn is required")
	}
	if _, err := report.ParseFormat(c.Generate.Format); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return errs.Newf(errs.ErrKindInvalidArgument, "unknown log format %q", c.Log.Format)
	}
	if c.Generate.Workers < 0 {
		return errs.Newf(errs.ErrKindInvalidArgument, "workers must not be negative, got %d", c.Generate.Workers)
	}
	return nil
}

// DB converts the database section for the drivers.
func (c *Config) DB() *database.Config {
	driver, _ := database.ParseDriver(c.Database.Driver)
	return &database.Config{
		Driver:          driver,
		DSN:             c.Database.DSN,
		MaxConns:        c.Database.MaxConns,
		MinConns:        c.Database.MinConns,
		MaxConnLifetime: c.Database.ConnMaxLifetime,
		MaxConnIdleTime: c.Database.ConnMaxIdleTime,
		ConnectTimeout:  c.Database.ConnectTimeout,
		QueryTimeout:    c.Database.QueryTimeout,
	}
}

// Filestore converts the store section for filestore providers.
func (c *Config) Filestore() *filestore.Config {
	return &filestore.Config{
		Provider:  filestore.ProviderMinIO,
		Endpoint:  c.Store.Endpoint,
		AccessKey: c.Store.AccessKey,
		SecretKey: c.Store.SecretKey,
		UseSSL:    c.Store.UseSSL,
		Region:    c.Store.Region,
		Bucket:    c.Store.Bucket,
	}
}

// Logger converts the log section, writing to out.
func (c *Config) Logger(out io.Writer) *logger.Config {
	return &logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
		Output:     out,
	}
}
