// Package report turns inferred relationships into documents: structured
// YAML and JSON for tooling, plain text for people and Mermaid ER diagrams.
package report

import (
	"context"
	"time"

	"github.com/koustreak/relgen/internal/relation"
)

// Generator names the producer in every report.
const Generator = "relgen"

// Relation is one declaration as it appears in a report.
type Relation struct {
	Type     string `json:"type" yaml:"type"`
	Code     string `json:"code" yaml:"code"`
	Model    string `json:"model" yaml:"model"`
	Table    string `json:"table" yaml:"table"`
	Column   string `json:"column,omitempty" yaml:"column,omitempty"`
	Pivot    string `json:"pivot,omitempty" yaml:"pivot,omitempty"`
	Notation string `json:"notation" yaml:"notation"`
}

// Table lists the relations of one snapshot table.
type Table struct {
	Table      string     `json:"table" yaml:"table"`
	Model      string     `json:"model" yaml:"model"`
	PrimaryKey string     `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Relations  []Relation `json:"relations" yaml:"relations"`
}

// Report is the full inference result for a snapshot.
type Report struct {
	Generator   string    `json:"generator" yaml:"generator"`
	Driver      string    `json:"driver,omitempty" yaml:"driver,omitempty"`
	Schema      string    `json:"schema,omitempty" yaml:"schema,omitempty"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Tables      []Table   `json:"tables" yaml:"tables"`
}

// Meta describes where a snapshot came from.
type Meta struct {
	Driver      string
	Schema      string
	GeneratedAt time.Time
}

// Build assembles a report from a snapshot and the relations inferred for
// it. Tables appear in snapshot order whatever the order of relations.
func Build(snapshot *relation.SchemaMap, relations []relation.TableRelations, meta Meta) *Report {
	byTable := make(map[string][]relation.Declaration, len(relations))
	for _, tr := range relations {
		byTable[tr.Table] = tr.Declarations
	}

	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	r := &Report{
		Generator:   Generator,
		Driver:      meta.Driver,
		Schema:      meta.Schema,
		GeneratedAt: meta.GeneratedAt.UTC(),
		Tables:      make([]Table, 0, snapshot.Len()),
	}

	for name, t := range snapshot.All() {
		r.Tables = append(r.Tables, Table{
			Table:      name,
			Model:      relation.ModelName(name),
			PrimaryKey: t.PrimaryKey.GetOrZero(),
			Relations:  relationsOf(byTable[name]),
		})
	}
	return r
}

// NewTable renders the declarations of a single table.
func NewTable(name string, t relation.TableSchema, decls []relation.Declaration) Table {
	return Table{
		Table:      name,
		Model:      relation.ModelName(name),
		PrimaryKey: t.PrimaryKey.GetOrZero(),
		Relations:  relationsOf(decls),
	}
}

func relationsOf(decls []relation.Declaration) []Relation {
	out := make([]Relation, 0, len(decls))
	for _, d := range decls {
		out = append(out, Relation{
			Type:     d.Kind.String(),
			Code:     d.Kind.Code(),
			Model:    relation.ModelName(d.Table),
			Table:    d.Table,
			Column:   d.Column,
			Pivot:    d.Pivot,
			Notation: d.Notation(),
		})
	}
	return out
}

// Generate infers every table of snapshot with up to workers goroutines and
// builds the report.
func Generate(ctx context.Context, snapshot *relation.SchemaMap, workers int, meta Meta) (*Report, error) {
	relations, err := relation.InferAll(ctx, snapshot, workers)
	if err != nil {
		return nil, err
	}
	return Build(snapshot, relations, meta), nil
}
