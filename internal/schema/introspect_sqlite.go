package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/koustreak/relgen/internal/database"
	"github.com/koustreak/relgen/internal/errs"
	"github.com/koustreak/relgen/internal/relation"
)

// SQLiteLoader reads the main database of a SQLite connection through
// sqlite_master and the table-valued pragma functions.
type SQLiteLoader struct {
	db   database.DB
	opts Options
}

// NewSQLiteLoader creates a SQLite loader.
func NewSQLiteLoader(db database.DB, opts Options) *SQLiteLoader {
	return &SQLiteLoader{db: db, opts: opts}
}

type sqliteFK struct {
	id, seq  int
	table    string
	from     string
	to       sql.NullString
	onUpdate string
	onDelete string
}

// LoadSchema reads every user table of the database.
func (s *SQLiteLoader) LoadSchema(ctx context.Context) (*relation.SchemaMap, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	const tablesQuery = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	tables, err := database.QueryAll(ctx, s.db, database.ScanString, tablesQuery)
	if err != nil {
		return nil, err
	}

	c := catalog{Tables: tables}
	pks := make(map[string][]string, len(tables))

	for _, table := range tables {
		cols, err := s.primaryKey(ctx, table)
		if err != nil {
			return nil, err
		}
		pks[table] = cols
		for _, col := range cols {
			c.PrimaryKeys = append(c.PrimaryKeys, keyColumn{Table: table, Column: col})
		}
	}

	for _, table := range tables {
		fks, err := s.foreignKeys(ctx, table)
		if err != nil {
			return nil, err
		}
		for _, fk := range fks {
			ref := fk.to.String
			if !fk.to.Valid || ref == "" {
				ref, err = s.implicitReference(ctx, pks, fk)
				if err != nil {
					return nil, err
				}
			}
			c.ForeignKeys = append(c.ForeignKeys, fkColumn{
				Table:            table,
				Constraint:       fmt.Sprintf("fk_%s_%d", table, fk.id),
				Column:           fk.from,
				ReferencedTable:  fk.table,
				ReferencedColumn: ref,
				OnUpdate:         fk.onUpdate,
				OnDelete:         fk.onDelete,
			})
		}
	}

	return assemble(c, s.opts.IgnoreTables, s.opts.log())
}

func (s *SQLiteLoader) primaryKey(ctx context.Context, table string) ([]string, error) {
	const q = `SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk`
	return database.QueryAll(ctx, s.db, database.ScanString, q, table)
}

// foreignKeys lists the key columns of table. SQLite numbers constraints
// from the last declared one, so descending ids restore declaration order.
func (s *SQLiteLoader) foreignKeys(ctx context.Context, table string) ([]sqliteFK, error) {
	const q = `
		SELECT id, seq, "table", "from", "to", on_update, on_delete
		FROM pragma_foreign_key_list(?)
		ORDER BY id DESC, seq`

	return database.QueryAll(ctx, s.db, func(r database.Rows) (sqliteFK, error) {
		var f sqliteFK
		err := r.Scan(&f.id, &f.seq, &f.table, &f.from, &f.to, &f.onUpdate, &f.onDelete)
		return f, err
	}, q, table)
}

// implicitReference resolves "REFERENCES parent" written without a column list:
// the key column at the same position of the parent's primary key.
func (s *SQLiteLoader) implicitReference(ctx context.Context, pks map[string][]string, fk sqliteFK) (string, error) {
	if cols, ok := pks[fk.table]; ok {
		if fk.seq < len(cols) {
			return cols[fk.seq], nil
		}
		return "", nil
	}

	// The parent is outside sqlite_master's user tables, or does not exist.
	row, err := s.db.QueryRow(ctx, `SELECT name FROM pragma_table_info(?) WHERE pk = ?`, fk.table, fk.seq+1)
	if err != nil {
		return "", err
	}
	var col string
	if err := row.Scan(&col); err != nil {
		if errs.IsNotFound(err) {
			s.opts.log().Warn().
				Str("table", fk.table).
				Str("column", fk.from).
				Msg("referenced table has no matching primary key column")
			return "", nil
		}
		return "", err
	}
	return col, nil
}
