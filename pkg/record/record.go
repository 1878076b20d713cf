package record

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/agentstation/goldrec/pkg/errors"
)

// Record is a validated instance of a Schema. Unset fields are
// distinct from zero values: a field absent from the value map has not
// been observed, and default merging leaves the existing side intact.
//
// Records are not safe for concurrent mutation; the store hands out
// copies.
type Record struct {
	schema *Schema
	values map[string]any
}

// New creates an empty record of the given schema.
func New(schema *Schema) *Record {
	return &Record{
		schema: schema,
		values: make(map[string]any),
	}
}

// Build creates a record and sets the given field values. It fails on
// the first value that does not validate against the schema.
func Build(schema *Schema, values map[string]any) (*Record, error) {
	r := New(schema)
	// Deterministic order so validation errors are stable.
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Set(name, values[name]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Schema returns the record's schema.
func (r *Record) Schema() *Schema {
	return r.schema
}

// Set validates and stores a field value. Setting nil clears the field.
func (r *Record) Set(name string, value any) error {
	f, ok := r.schema.Field(name)
	if !ok {
		return errors.NewValidationError(name, value, "field not declared in schema "+r.schema.Name())
	}

	if value == nil {
		delete(r.values, name)
		return nil
	}

	normalized, err := normalize(f, value)
	if err != nil {
		return err
	}
	r.values[name] = normalized
	return nil
}

// Get returns the field value and whether it is set.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether the field is set.
func (r *Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// String returns the value of a string field, or "" if unset.
func (r *Record) String(name string) string {
	if v, ok := r.values[name].(string); ok {
		return v
	}
	return ""
}

// Int returns the value of an int field, or 0 if unset.
func (r *Record) Int(name string) int64 {
	if v, ok := r.values[name].(int64); ok {
		return v
	}
	return 0
}

// Float returns the value of a float field, or 0 if unset.
func (r *Record) Float(name string) float64 {
	if v, ok := r.values[name].(float64); ok {
		return v
	}
	return 0
}

// Bool returns the value of a bool field, or false if unset.
func (r *Record) Bool(name string) bool {
	if v, ok := r.values[name].(bool); ok {
		return v
	}
	return false
}

// Strings returns a copy of the value of a string-list field, or nil
// if unset.
func (r *Record) Strings(name string) []string {
	if v, ok := r.values[name].([]string); ok {
		return append([]string(nil), v...)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := New(r.schema)
	for name, v := range r.values {
		if list, ok := v.([]string); ok {
			cp.values[name] = append([]string(nil), list...)
			continue
		}
		cp.values[name] = v
	}
	return cp
}

// Equal reports whether two records have the same schema identity and
// identical field values.
func (r *Record) Equal(other *Record) bool {
	if other == nil {
		return false
	}
	if r.schema.Name() != other.schema.Name() {
		return false
	}
	if len(r.values) != len(other.values) {
		return false
	}
	for name, v := range r.values {
		ov, ok := other.values[name]
		if !ok {
			return false
		}
		if list, isList := v.([]string); isList {
			olist, isOList := ov.([]string)
			if !isOList || len(list) != len(olist) {
				return false
			}
			for i := range list {
				if list[i] != olist[i] {
					return false
				}
			}
			continue
		}
		if v != ov {
			return false
		}
	}
	return true
}

// Validate checks that all required fields are set.
func (r *Record) Validate() error {
	for _, f := range r.schema.fields {
		if f.Required && !r.Has(f.Name) {
			return errors.NewValidationError(f.Name, nil, "required field is not set")
		}
	}
	return nil
}

// MarshalJSON encodes the set field values as a JSON object.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.values)
}

// JSON returns the record's set fields as indented JSON, used for
// persistence previews and synthesis prompts.
func (r *Record) JSON() (string, error) {
	data, err := json.MarshalIndent(r.values, "", "  ")
	if err != nil {
		return "", errors.WrapParse("json", "", err)
	}
	return string(data), nil
}

// FromJSON decodes a JSON object into a validated record of the given
// schema. Unknown fields and kind mismatches fail validation.
func FromJSON(schema *Schema, data []byte) (*Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapParse("json", "", err)
	}

	r := New(schema)
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Set(name, raw[name]); err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// normalize coerces a caller- or JSON-supplied value into the
// canonical representation for the field kind.
func normalize(f Field, value any) (any, error) {
	switch f.Kind {
	case KindString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case KindInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			// JSON numbers decode as float64; accept integral values.
			if v == math.Trunc(v) {
				return int64(v), nil
			}
		}
	case KindFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
	case KindBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case KindStringList:
		switch v := value.(type) {
		case []string:
			return append([]string(nil), v...), nil
		case []any:
			list := make([]string, 0, len(v))
			for _, e := range v {
				s, ok := e.(string)
				if !ok {
					return nil, errors.NewValidationError(f.Name, e, "list element is not a string")
				}
				list = append(list, s)
			}
			return list, nil
		}
	}
	return nil, errors.NewValidationError(f.Name, value,
		fmt.Sprintf("value of type %T does not match kind %s", value, f.Kind))
}
