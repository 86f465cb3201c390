package database

import "context"

// DB is the catalog connection the schema loaders read through. The loaders
// only run SELECTs against information_schema, sqlite_master and pragma
// table functions, so the contract has no Exec or transaction support.
// The HTTP health check uses Ping.
type DB interface {
	Ping(ctx context.Context) error

	// Close releases the pool. It is safe to call once after any error.
	Close()

	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow returns the first row. A missing row surfaces as a NotFound
	// error from Row.Scan.
	QueryRow(ctx context.Context, sql string, args ...any) (Row, error)
}

// Rows is a forward-only result set. Scan and Err return *errs.Error.
// Collect closes it; other callers must Close it themselves.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// Row is a single-row result.
type Row interface {
	Scan(dest ...any) error
}
