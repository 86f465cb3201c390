package relation

import "strings"

// Kind is the type of an inferred relationship.
type Kind int

const (
	ManyToOne Kind = iota + 1
	OneToMany
	OneToOne
	ManyToMany
)

func (k Kind) String() string {
	switch k {
	case ManyToOne:
		return "many_to_one"
	case OneToMany:
		return "one_to_many"
	case OneToOne:
		return "one_to_one"
	case ManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// Code is the short relation code used by model generators.
func (k Kind) Code() string {
	switch k {
	case ManyToOne:
		return "mt1"
	case OneToMany:
		return "1tm"
	case OneToOne:
		return "1t1"
	case ManyToMany:
		return "mtm"
	default:
		return ""
	}
}

// Declaration is one relationship the subject table participates in.
//
//	ManyToOne:  Table is the referenced table, Column the subject's local FK column.
//	OneToMany:  Table is the referencing table, Column its FK column.
//	OneToOne:   Table is the referencing table.
//	ManyToMany: Table is the model on the far side, Pivot the join table.
type Declaration struct {
	Kind   Kind
	Table  string
	Column string
	Pivot  string
}

// Notation renders the declaration as a relation string, e.g.
// "mt1,User,user_id" or "mtm,Role,role_user".
func (d Declaration) Notation() string {
	parts := []string{d.Kind.Code(), ModelName(d.Table)}
	switch d.Kind {
	case ManyToOne, OneToMany:
		parts = append(parts, d.Column)
	case ManyToMany:
		parts = append(parts, d.Pivot)
	}
	return strings.Join(parts, ",")
}

func (d Declaration) String() string {
	return d.Notation()
}
