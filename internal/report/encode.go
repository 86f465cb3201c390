package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/koustreak/relgen/internal/errs"
	"github.com/koustreak/relgen/internal/relation"
	"go.yaml.in/yaml/v3"
)

// Format selects a report encoding.
type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatText    Format = "text"
	FormatMermaid Format = "mermaid"
)

// Formats lists every supported encoding.
var Formats = []Format{FormatYAML, FormatJSON, FormatText, FormatMermaid}

// ParseFormat accepts a format name or a common alias.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "text", "txt", "":
		return FormatText, nil
	case "mermaid", "mmd":
		return FormatMermaid, nil
	}
	return "", errs.Newf(errs.ErrKindInvalidArgument, "unknown report format %q", name)
}

// ContentType is the MIME type served and stored for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatMermaid:
		return "text/vnd.mermaid; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension is the file extension for f, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return "txt"
	case FormatMermaid:
		return "mmd"
	default:
		return string(f)
	}
}

// Encode writes r to w in format f.
func Encode(w io.Writer, f Format, r *Report) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatText:
		return encodeText(w, r.Tables)
	case FormatMermaid:
		return encodeMermaid(w, r.Tables)
	}
	return errs.Newf(errs.ErrKindInvalidArgument, "unknown report format %q", f)
}

// EncodeTable writes the relations of a single table in format f.
func EncodeTable(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case FormatText:
		return encodeText(w, []Table{t})
	case FormatMermaid:
		return encodeMermaid(w, []Table{t})
	}
	return errs.Newf(errs.ErrKindInvalidArgument, "unknown report format %q", f)
}

// encodeText writes one block per table, one notation per line:
//
//	posts (Post)
//	  mt1,User,user_id
//	  1tm,Comment,post_id
func encodeText(w io.Writer, tables []Table) error {
	bw := bufio.NewWriter(w)
	for i, t := range tables {
		if i > 0 {
			bw.WriteByte('\n')
		}
		fmt.Fprintf(bw, "%s (%s)\n", t.Table, t.Model)
		for _, rel := range t.Relations {
			fmt.Fprintf(bw, "  %s\n", rel.Notation)
		}
	}
	return bw.Flush()
}

type edgeKey struct {
	from, to, label string
}

type edge struct {
	edgeKey
	card string
}

// encodeMermaid writes an erDiagram. Both sides of an association infer it,
// so edges are keyed by their endpoints and label and written once. A
// one-to-one edge replaces the one-to-many edge of the same key.
func encodeMermaid(w io.Writer, tables []Table) error {
	pks := make(map[string]string, len(tables))
	for _, t := range tables {
		pks[t.Table] = t.PrimaryKey
	}

	var edges []*edge
	index := make(map[edgeKey]*edge)
	add := func(from, to, label, card string) {
		k := edgeKey{from, to, label}
		if e, ok := index[k]; ok {
			if card == "||--||" {
				e.card = card
			}
			return
		}
		e := &edge{edgeKey: k, card: card}
		index[k] = e
		edges = append(edges, e)
	}

	for _, t := range tables {
		for _, rel := range t.Relations {
			switch rel.Type {
			case relation.ManyToOne.String():
				add(rel.Table, t.Table, rel.Column, "||--o{")
			case relation.OneToMany.String():
				add(t.Table, rel.Table, rel.Column, "||--o{")
			case relation.OneToOne.String():
				add(t.Table, rel.Table, pks[rel.Table], "||--||")
			case relation.ManyToMany.String():
				a, b := t.Table, rel.Table
				if b < a {
					a, b = b, a
				}
				add(a, b, rel.Pivot, "}o--o{")
			}
		}
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("erDiagram\n")
	for _, t := range tables {
		if t.PrimaryKey == "" {
			continue
		}
		fmt.Fprintf(bw, "    %s {\n        key %s PK\n    }\n", mermaidName(t.Table), t.PrimaryKey)
	}
	for _, e := range edges {
		fmt.Fprintf(bw, "    %s %s %s : %q\n", mermaidName(e.from), e.card, mermaidName(e.to), e.label)
	}
	return bw.Flush()
}

// mermaidName keeps identifiers Mermaid accepts unquoted.
func mermaidName(table string) string {
	return strings.NewReplacer(".", "__", " ", "_").Replace(table)
}
