package report

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/koustreak/relgen/internal/errs"
	"github.com/koustreak/relgen/internal/filestore"
)

// DefaultURLTTL is how long a published report link stays valid.
const DefaultURLTTL = 24 * time.Hour

// Published is the outcome of a Publish call.
type Published struct {
	Object *filestore.ObjectInfo `json:"object"`
	URL    string                `json:"url"`
}

// DefaultKey names a report object after its schema and generation time,
// e.g. "reports/public/20240102T150405Z.yaml".
func DefaultKey(r *Report, f Format) string {
	schema := r.Schema
	if schema == "" {
		schema = "default"
	}
	return path.Join("reports", schema, r.GeneratedAt.UTC().Format("20060102T150405Z")+"."+f.Extension())
}

// Publish encodes r in format f, uploads it to key inside bucket and returns
// the stored object with a download URL valid for ttl.
func Publish(ctx context.Context, store filestore.Store, bucket, key string, f Format, r *Report, ttl time.Duration) (*Published, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errs.New(errs.ErrKindInvalidArgument, "bucket is required")
	}
	if key == "" {
		key = DefaultKey(r, f)
	}
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}

	var buf bytes.Buffer
	if err := Encode(&buf, f, r); err != nil {
		return nil, err
	}

	if err := store.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	info, err := store.PutObject(ctx, bucket, key, &buf, int64(buf.Len()), filestore.PutOptions{
		ContentType: f.ContentType(),
		Metadata: map[string]string{
			"generator": r.Generator,
			"driver":    r.Driver,
			"schema":    r.Schema,
		},
	})
	if err != nil {
		return nil, err
	}

	url, err := store.PresignGetURL(ctx, bucket, key, ttl)
	if err != nil {
		return nil, err
	}

	return &Published{Object: info, URL: url}, nil
}
