// Package schema reads table, primary-key and foreign-key metadata from a
// live database and assembles it into a relation.SchemaMap snapshot.
package schema

import (
	"context"
	"time"

	"github.com/koustreak/relgen/internal/database"
	"github.com/koustreak/relgen/internal/database/mysql"
	"github.com/koustreak/relgen/internal/database/postgres"
	"github.com/koustreak/relgen/internal/database/sqlite"
	"github.com/koustreak/relgen/internal/errs"
	"github.com/koustreak/relgen/internal/logger"
	"github.com/koustreak/relgen/internal/relation"
)

// Loader builds a schema snapshot.
type Loader interface {
	LoadSchema(ctx context.Context) (*relation.SchemaMap, error)
}

// Options tunes what a loader reads.
type Options struct {
	// Schema is the namespace to read: the database for MySQL, the schema
	// for PostgreSQL ("public" when empty). SQLite ignores it.
	Schema string

	// IgnoreTables are left out of the snapshot.
	IgnoreTables []string

	// QueryTimeout bounds one LoadSchema call. Zero means no extra deadline.
	QueryTimeout time.Duration

	Logger *logger.Logger
}

func (o Options) log() *logger.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.Global()
}

// NewLoader returns the loader for driver reading through db.
func NewLoader(db database.DB, driver database.Driver, opts Options) (Loader, error) {
	switch driver {
	case database.DriverMySQL:
		return NewMySQLLoader(db, opts), nil
	case database.DriverPostgres:
		return NewPgLoader(db, opts), nil
	case database.DriverSQLite:
		return NewSQLiteLoader(db, opts), nil
	}
	return nil, errs.Newf(errs.ErrKindInvalidArgument, "no schema loader for driver %q", driver)
}

// Open connects cfg's driver and returns the connection with its loader.
// The caller owns the returned DB and must Close it.
func Open(ctx context.Context, cfg *database.Config, opts Options) (database.DB, Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	driver, _ := database.ParseDriver(string(cfg.Driver))
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = cfg.QueryTimeout
	}

	var (
		db  database.DB
		err error
	)
	switch driver {
	case database.DriverMySQL:
		var d *mysql.Driver
		if d, err = mysql.New(ctx, cfg); err == nil {
			if opts.Schema == "" {
				opts.Schema = d.Schema()
			}
			db = d
		}
	case database.DriverPostgres:
		db, err = postgres.New(ctx, cfg)
	case database.DriverSQLite:
		db, err = sqlite.New(ctx, cfg)
	}
	if err != nil {
		return nil, nil, err
	}

	loader, err := NewLoader(db, driver, opts)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	opts.log().Debug().
		Str("driver", string(driver)).
		Str("schema", opts.Schema).
		Msg("database connected")

	return db, loader, nil
}

// withTimeout applies opts.QueryTimeout to ctx.
func (o Options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.QueryTimeout > 0 {
		return context.WithTimeout(ctx, o.QueryTimeout)
	}
	return context.WithCancel(ctx)
}
