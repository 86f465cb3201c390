package schema

import (
	"context"

	"github.com/koustreak/relgen/internal/database"
	"github.com/koustreak/relgen/internal/relation"
)

// PgLoader reads a PostgreSQL schema through information_schema.
type PgLoader struct {
	db   database.DB
	opts Options
}

// NewPgLoader creates a PostgreSQL loader.
func NewPgLoader(db database.DB, opts Options) *PgLoader {
	return &PgLoader{db: db, opts: opts}
}

func (p *PgLoader) schema() string {
	if p.opts.Schema == "" {
		return "public"
	}
	return p.opts.Schema
}

// LoadSchema reads every base table of the configured schema.
func (p *PgLoader) LoadSchema(ctx context.Context) (*relation.SchemaMap, error) {
	ctx, cancel := p.opts.withTimeout(ctx)
	defer cancel()

	schema := p.schema()
	var (
		c   catalog
		err error
	)

	const tablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	if c.Tables, err = database.QueryAll(ctx, p.db, database.ScanString, tablesQuery, schema); err != nil {
		return nil, err
	}

	const primaryKeysQuery = `
		SELECT kcu.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_schema = kcu.constraint_schema
			AND tc.constraint_name = kcu.constraint_name
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1
		ORDER BY kcu.table_name, kcu.ordinal_position`

	if c.PrimaryKeys, err = database.QueryAll(ctx, p.db, scanKeyColumn, primaryKeysQuery, schema); err != nil {
		return nil, err
	}

	// The referenced column is the one at the same position of the unique
	// constraint the foreign key points at.
	const foreignKeysQuery = `
		SELECT
			kcu.table_name,
			kcu.constraint_name,
			kcu.column_name,
			ref.table_schema,
			ref.table_name,
			ref.column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = rc.constraint_schema
			AND kcu.constraint_name = rc.constraint_name
		JOIN information_schema.key_column_usage ref
			ON ref.constraint_schema = rc.unique_constraint_schema
			AND ref.constraint_name = rc.unique_constraint_name
			AND ref.ordinal_position = kcu.position_in_unique_constraint
		WHERE kcu.table_schema = $1
		ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`

	if c.ForeignKeys, err = database.QueryAll(ctx, p.db, scanQualifiedFK(schema), foreignKeysQuery, schema); err != nil {
		return nil, err
	}

	return assemble(c, p.opts.IgnoreTables, p.opts.log())
}

func scanKeyColumn(r database.Rows) (keyColumn, error) {
	var k keyColumn
	err := r.Scan(&k.Table, &k.Column)
	return k, err
}

// scanQualifiedFK scans a foreign-key row whose referenced table carries its
// own schema. References leaving home are written schema.table so they never
// match a local table of the same name.
func scanQualifiedFK(home string) func(database.Rows) (fkColumn, error) {
	return func(r database.Rows) (fkColumn, error) {
		var (
			f         fkColumn
			refSchema string
		)
		err := r.Scan(&f.Table, &f.Constraint, &f.Column, &refSchema,
			&f.ReferencedTable, &f.ReferencedColumn, &f.OnUpdate, &f.OnDelete)
		if err == nil && refSchema != "" && refSchema != home {
			f.ReferencedTable = refSchema + "." + f.ReferencedTable
		}
		return f, err
	}
}
