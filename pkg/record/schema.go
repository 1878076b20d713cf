// Package record defines the caller-declared schema and the validated
// record instances stored by the consolidation engine. A Schema is a
// closed product type: a named table of typed fields. Scalar fields
// carry an overwrite merge hint; list fields an append hint. Records
// round-trip through JSON for persistence and for synthesis prompts.
package record

import (
	"fmt"

	"github.com/agentstation/goldrec/pkg/errors"
)

// Key is an opaque, comparable primary key derived from a record.
// Keys may be composite (e.g. a concatenation of two field values) to
// support grouped or time-bucketed consolidation.
type Key string

// KeyFunc derives the primary key of a record. It must be pure and
// stable: two records describing the same logical entity must yield
// the same key.
type KeyFunc func(*Record) (Key, error)

// Kind is the type tag of a schema field.
type Kind int

// Supported field kinds. Scalars merge by overwrite; string lists
// merge by order-preserving union.
const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindStringList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindStringList:
		return "string_list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// valid reports whether the kind is one of the declared constants.
func (k Kind) valid() bool {
	return k >= KindString && k <= KindStringList
}

// Field declares one named, typed field of a schema.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Schema is a closed, caller-declared field table. It is immutable
// after construction and safe for concurrent use.
type Schema struct {
	name   string
	fields []Field
	byName map[string]Field
}

// NewSchema creates a schema from a name and field declarations.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	if name == "" {
		return nil, errors.NewValidationError("name", name, "schema name must not be empty")
	}
	if len(fields) == 0 {
		return nil, errors.NewValidationError("fields", nil, "schema must declare at least one field")
	}

	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, errors.NewValidationError("fields", f, "field name must not be empty")
		}
		if !f.Kind.valid() {
			return nil, errors.NewValidationError(f.Name, f.Kind, "unknown field kind")
		}
		if _, dup := byName[f.Name]; dup {
			return nil, errors.NewValidationError(f.Name, nil, "duplicate field name")
		}
		byName[f.Name] = f
	}

	return &Schema{
		name:   name,
		fields: append([]Field(nil), fields...),
		byName: byName,
	}, nil
}

// MustSchema is like NewSchema but panics on error. Intended for
// package-level schema declarations.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.name
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field returns the declaration for the named field.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.fields)
}
