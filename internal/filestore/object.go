package filestore

import "time"

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	Bucket string `json:"bucket"`

	// Key is the full object path within the bucket (e.g. "reports/app.yaml").
	Key string `json:"key"`

	// Size is the byte size of the object. -1 if unknown.
	Size int64 `json:"size"`

	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// PutOptions carries object metadata for an upload.
type PutOptions struct {
	ContentType string

	// Metadata is stored as user metadata (x-amz-meta-*).
	Metadata map[string]string
}
