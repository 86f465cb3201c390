package schema

import (
	"slices"

	"github.com/koustreak/relgen/internal/logger"
	"github.com/koustreak/relgen/internal/relation"
)

// keyColumn is one column of a table's primary key, in key order.
type keyColumn struct {
	Table  string
	Column string
}

// fkColumn is one column of a foreign-key constraint, in key order.
type fkColumn struct {
	Table            string
	Constraint       string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	OnUpdate         string
	OnDelete         string
}

// catalog is the raw metadata a loader reads before assembly.
type catalog struct {
	Tables      []string
	PrimaryKeys []keyColumn
	ForeignKeys []fkColumn
}

// assemble turns catalog rows into a snapshot. Only single-column keys are
// represented: a composite primary key is recorded as absent and a composite
// foreign key is dropped.
func assemble(c catalog, ignore []string, log *logger.Logger) (*relation.SchemaMap, error) {
	skip := func(table string) bool { return slices.Contains(ignore, table) }

	pks := make(map[string][]string, len(c.Tables))
	for _, k := range c.PrimaryKeys {
		pks[k.Table] = append(pks[k.Table], k.Column)
	}

	type constraintKey struct{ table, name string }
	var order []constraintKey
	groups := make(map[constraintKey][]fkColumn)
	for _, f := range c.ForeignKeys {
		k := constraintKey{f.Table, f.Constraint}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], f)
	}

	fks := make(map[string][]relation.ForeignKeyRef, len(c.Tables))
	for _, k := range order {
		cols := groups[k]
		if len(cols) != 1 {
			log.Warn().
				Str("table", k.table).
				Str("constraint", k.name).
				Int("columns", len(cols)).
				Msg("skipping composite foreign key")
			continue
		}
		f := cols[0]
		fks[f.Table] = append(fks[f.Table], relation.ForeignKeyRef{
			Name:             f.Constraint,
			LocalColumn:      f.Column,
			ReferencedTable:  f.ReferencedTable,
			ReferencedColumn: f.ReferencedColumn,
			OnUpdate:         f.OnUpdate,
			OnDelete:         f.OnDelete,
		})
	}

	snapshot := relation.NewSchemaMap()
	for _, table := range c.Tables {
		if skip(table) {
			continue
		}

		var pk string
		switch cols := pks[table]; len(cols) {
		case 0:
		case 1:
			pk = cols[0]
		default:
			log.Debug().
				Str("table", table).
				Strs("columns", cols).
				Msg("composite primary key recorded as absent")
		}

		if err := snapshot.Add(table, relation.NewTableSchema(pk, fks[table]...)); err != nil {
			return nil, err
		}
	}

	log.Debug().
		Int("tables", snapshot.Len()).
		Int("foreign_keys", len(c.ForeignKeys)).
		Msg("schema snapshot assembled")

	return snapshot, nil
}
