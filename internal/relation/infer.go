// Package relation infers the associations a table takes part in from the
// primary and foreign keys of every table in its schema.
//
// Only single-column keys are understood. A table whose primary key spans
// several columns is treated as having no primary key, and so is never the
// target of an inferred relationship.
package relation

import "github.com/koustreak/relgen/internal/errs"

// Infer returns the relationships of subject, in order: first the
// many-to-one relations from the subject's own foreign keys, then the
// relations contributed by every other table in schema order.
//
// schema must contain subject; otherwise Infer returns an invalid_argument
// error. Infer never modifies schema.
func Infer(subject string, schema *SchemaMap) ([]Declaration, error) {
	model, ok := schema.Get(subject)
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidArgument, "table %q is not in the schema snapshot", subject)
	}

	view := others{schema: schema, subject: subject}
	decls := manyToOne(model, view)

	for name, table := range view.all() {
		if len(table.ForeignKeys) == 2 {
			if target, ok := pivotTarget(subject, model, table, view); ok {
				decls = append(decls, Declaration{Kind: ManyToMany, Table: target, Pivot: name})
				continue
			}
		}

		for _, fk := range table.ForeignKeys {
			if fk.ReferencedTable != subject {
				continue
			}
			if !model.IsPrimaryKey(fk.ReferencedColumn) {
				continue
			}
			if table.IsPrimaryKey(fk.LocalColumn) {
				decls = append(decls, Declaration{Kind: OneToOne, Table: name})
				continue
			}
			decls = append(decls, Declaration{Kind: OneToMany, Table: name, Column: fk.LocalColumn})
		}
	}

	return decls, nil
}

// manyToOne classifies the subject's own foreign keys.
func manyToOne(model TableSchema, view others) []Declaration {
	var decls []Declaration
	seen := make(map[string]bool, len(model.ForeignKeys))

	for _, fk := range model.ForeignKeys {
		target, ok := view.get(fk.ReferencedTable)
		if !ok {
			continue
		}
		if !target.IsPrimaryKey(fk.ReferencedColumn) {
			continue
		}
		if seen[fk.LocalColumn] {
			continue
		}
		seen[fk.LocalColumn] = true
		decls = append(decls, Declaration{Kind: ManyToOne, Table: fk.ReferencedTable, Column: fk.LocalColumn})
	}
	return decls
}

// pivotTarget reports whether table joins the subject to another table and,
// if so, returns that other table. The caller guarantees exactly two foreign
// keys; only those two are ever considered.
func pivotTarget(subject string, model, table TableSchema, view others) (string, bool) {
	refsSubject := false
	for _, fk := range table.ForeignKeys {
		if fk.ReferencedTable == subject {
			refsSubject = true
		}
	}
	if !refsSubject {
		return "", false
	}

	target := ""
	for _, fk := range table.ForeignKeys {
		referenced := model
		if fk.ReferencedTable != subject {
			t, ok := view.get(fk.ReferencedTable)
			if !ok {
				return "", false
			}
			referenced = t
			target = fk.ReferencedTable
		}

		if !referenced.IsPrimaryKey(fk.ReferencedColumn) {
			return "", false
		}
		// A referenced column named like the pivot's own key disqualifies it.
		if table.IsPrimaryKey(fk.ReferencedColumn) {
			return "", false
		}
	}

	if target == "" {
		return "", false
	}
	return target, true
}
