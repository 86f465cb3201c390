package schema

import (
	"context"

	"github.com/koustreak/relgen/internal/database"
	"github.com/koustreak/relgen/internal/relation"
)

// MySQLLoader reads a MySQL or MariaDB database through information_schema.
type MySQLLoader struct {
	db   database.DB
	opts Options
}

// NewMySQLLoader creates a MySQL loader. An empty opts.Schema reads the
// connection's current database.
func NewMySQLLoader(db database.DB, opts Options) *MySQLLoader {
	return &MySQLLoader{db: db, opts: opts}
}

// LoadSchema reads every base table of the configured database.
func (m *MySQLLoader) LoadSchema(ctx context.Context) (*relation.SchemaMap, error) {
	ctx, cancel := m.opts.withTimeout(ctx)
	defer cancel()

	schema := m.opts.Schema
	if schema == "" {
		row, err := m.db.QueryRow(ctx, `SELECT COALESCE(DATABASE(), '')`)
		if err != nil {
			return nil, err
		}
		if err := row.Scan(&schema); err != nil {
			return nil, err
		}
	}

	var (
		c   catalog
		err error
	)

	const tablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	if c.Tables, err = database.QueryAll(ctx, m.db, database.ScanString, tablesQuery, schema); err != nil {
		return nil, err
	}

	const primaryKeysQuery = `
		SELECT table_name, column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
		  AND constraint_name = 'PRIMARY'
		ORDER BY table_name, ordinal_position`

	if c.PrimaryKeys, err = database.QueryAll(ctx, m.db, scanKeyColumn, primaryKeysQuery, schema); err != nil {
		return nil, err
	}

	const foreignKeysQuery = `
		SELECT
			kcu.table_name,
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_schema,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.table_schema
			AND rc.constraint_name = kcu.constraint_name
			AND rc.table_name = kcu.table_name
		WHERE kcu.table_schema = ?
		  AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`

	if c.ForeignKeys, err = database.QueryAll(ctx, m.db, scanQualifiedFK(schema), foreignKeysQuery, schema); err != nil {
		return nil, err
	}

	return assemble(c, m.opts.IgnoreTables, m.opts.log())
}
