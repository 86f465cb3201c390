package relation

import (
	"iter"
	"slices"

	"github.com/aarondl/opt/null"
	"github.com/koustreak/relgen/internal/errs"
)

// ForeignKeyRef is one outgoing single-column foreign key of a table.
type ForeignKeyRef struct {
	Name             string // constraint name, diagnostics only
	LocalColumn      string
	ReferencedTable  string
	ReferencedColumn string
	OnUpdate         string
	OnDelete         string
}

// TableSchema is the key metadata of one table.
//
// PrimaryKey is null when the table has no simple (single-column) primary key.
// Composite keys are not supported: loaders record them as absent.
type TableSchema struct {
	PrimaryKey  null.Val[string]
	ForeignKeys []ForeignKeyRef
}

// NewTableSchema builds a TableSchema. An empty primaryKey means the table
// has no simple primary key.
func NewTableSchema(primaryKey string, fks ...ForeignKeyRef) TableSchema {
	t := TableSchema{ForeignKeys: fks}
	if primaryKey != "" {
		t.PrimaryKey = null.From(primaryKey)
	}
	return t
}

// IsPrimaryKey reports whether col is the table's primary key column.
// It is always false for a table without a primary key.
func (t TableSchema) IsPrimaryKey(col string) bool {
	pk, ok := t.PrimaryKey.Get()
	return ok && pk == col
}

// SchemaMap is an insertion-ordered snapshot of every table in a schema.
//
// A SchemaMap is built by a single goroutine and is read-only afterwards;
// concurrent readers are safe once building has finished.
type SchemaMap struct {
	order  []string
	tables map[string]TableSchema
}

// NewSchemaMap returns an empty snapshot.
func NewSchemaMap() *SchemaMap {
	return &SchemaMap{tables: make(map[string]TableSchema)}
}

// Add records a table. Re-adding a table replaces its schema but keeps its
// original position. The foreign key slice is copied so later changes by the
// caller do not leak into the snapshot.
func (m *SchemaMap) Add(name string, t TableSchema) error {
	if name == "" {
		return errs.New(errs.ErrKindInvalidArgument, "table name must not be empty")
	}
	for _, fk := range t.ForeignKeys {
		if fk.ReferencedTable == "" {
			return errs.Newf(errs.ErrKindInvalidArgument,
				"foreign key %q on table %q has no referenced table", fk.Name, name)
		}
	}

	t.ForeignKeys = slices.Clone(t.ForeignKeys)
	if _, exists := m.tables[name]; !exists {
		m.order = append(m.order, name)
	}
	m.tables[name] = t
	return nil
}

// Get returns the schema of the named table.
func (m *SchemaMap) Get(name string) (TableSchema, bool) {
	if m == nil {
		return TableSchema{}, false
	}
	t, ok := m.tables[name]
	return t, ok
}

// Len returns the number of tables.
func (m *SchemaMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Tables returns the table names in insertion order.
func (m *SchemaMap) Tables() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.order)
}

// All iterates tables in insertion order.
func (m *SchemaMap) All() iter.Seq2[string, TableSchema] {
	return func(yield func(string, TableSchema) bool) {
		if m == nil {
			return
		}
		for _, name := range m.order {
			if !yield(name, m.tables[name]) {
				return
			}
		}
	}
}

// others is a read-only view of a snapshot without the subject table.
// The underlying map is never modified.
type others struct {
	schema  *SchemaMap
	subject string
}

func (o others) get(name string) (TableSchema, bool) {
	if name == o.subject {
		return TableSchema{}, false
	}
	return o.schema.Get(name)
}

func (o others) all() iter.Seq2[string, TableSchema] {
	return func(yield func(string, TableSchema) bool) {
		for name, t := range o.schema.All() {
			if name == o.subject {
				continue
			}
			if !yield(name, t) {
				return
			}
		}
	}
}
