// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package record implements open records: structures with a fixed, typed,
// ordered field table declared by an external schema, plus a bag of extra
// fields that were not declared but must survive serialization unchanged.
//
// A Record routes every declared name through type coercion into its typed
// values and every other name, verbatim, into its extras. Serialization
// emits present declared fields in schema order (absent fields are omitted,
// never written as null) followed by the extras in sorted key order.
//
// Records are plain values owned by one caller. Concurrent readers are safe;
// concurrent mutation of one Record must be prevented by the caller.
package record

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// ErrUnbound is returned by Set on a record with no schema.
var ErrUnbound = errors.New("record has no schema")

// Record is one instance of an open record bound to a Schema. The zero
// value is unbound: it reads as empty and refuses Set until Bind or a
// decode attaches a schema.
type Record struct {
	schema *Schema
	values map[string]any
	extra  map[string]any
}

// Entry is one key/value pair of a record's serialized form.
type Entry struct {
	Key   string
	Value any
}

// New returns an empty record bound to s.
func New(s *Schema) Record {
	return Record{schema: s}
}

// FromMap builds a record under s from a deserialized object. Declared keys
// are coerced to their declared kind; all other keys are copied verbatim
// into the extras. Declared keys holding nil are treated as absent. Missing
// declared keys, required or not, are never an error.
func FromMap(s *Schema, m map[string]any) (Record, error) {
	r := New(s)
	for _, f := range s.Fields() {
		v, ok := m[f.Name]
		if !ok || absent(v) {
			continue
		}
		if err := r.setDeclared(f, v); err != nil {
			return Record{}, err
		}
	}
	for k, v := range m {
		if s.Declares(k) {
			continue
		}
		r.setExtra(k, v)
	}
	return r, nil
}

// Schema returns the schema the record is bound to.
func (r *Record) Schema() *Schema { return r.schema }

// Bind attaches s to an unbound record. A bound record keeps its schema.
func (r *Record) Bind(s *Schema) {
	if r.schema == nil {
		r.schema = s
	}
}

// Bound returns r itself.
func (r *Record) Bound() *Record { return r }

// Get returns the value stored under name. For a declared field this is the
// typed value (string, int64 or []string); for any other name it is the
// extra value as it was received. The second result is false when absent.
func (r *Record) Get(name string) (any, bool) {
	if r.schema.Declares(name) {
		v, ok := r.values[name]
		if list, isList := v.([]string); isList {
			return cloneStrings(list), ok
		}
		return v, ok
	}
	v, ok := r.extra[name]
	return v, ok
}

// Has reports whether name is present, declared or extra.
func (r *Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Set stores value under name. A declared field is coerced to its declared
// kind and a mismatch fails with a *ShapeError; nil, including a nil list,
// clears the field. Any other name is stored verbatim as an extra. An
// unbound record fails with ErrUnbound.
func (r *Record) Set(name string, value any) error {
	if r.schema == nil {
		return fmt.Errorf("setting %s: %w", name, ErrUnbound)
	}
	f, declared := r.schema.Lookup(name)
	if !declared {
		r.setExtra(name, value)
		return nil
	}
	if absent(value) {
		delete(r.values, name)
		return nil
	}
	return r.setDeclared(f, value)
}

// Unset removes name from the record.
func (r *Record) Unset(name string) {
	if r.schema.Declares(name) {
		delete(r.values, name)
		return
	}
	delete(r.extra, name)
}

// Extra returns a copy of the fields not declared by the schema.
func (r *Record) Extra() map[string]any {
	out := make(map[string]any, len(r.extra))
	maps.Copy(out, r.extra)
	return out
}

// Entries returns the serialized form: present declared fields in schema
// order, then extras sorted by key.
func (r *Record) Entries() []Entry {
	out := make([]Entry, 0, len(r.values)+len(r.extra))
	for _, f := range r.schema.Fields() {
		v, ok := r.values[f.Name]
		if !ok {
			continue
		}
		if list, isList := v.([]string); isList {
			v = cloneStrings(list)
		}
		out = append(out, Entry{Key: f.Name, Value: v})
	}
	for _, k := range slices.Sorted(maps.Keys(r.extra)) {
		out = append(out, Entry{Key: k, Value: r.extra[k]})
	}
	return out
}

// ToMap returns the serialized form as a plain map. Use Entries or the
// JSON/YAML marshalers when declared-field order matters.
func (r *Record) ToMap() map[string]any {
	entries := r.Entries()
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out
}

// Convert re-binds the record under another schema, typically another
// revision of the same field table. Names declared by s become typed
// fields; names s does not declare become extras.
func (r *Record) Convert(s *Schema) (Record, error) {
	return FromMap(s, r.ToMap())
}

// Equal reports structural equality: same schema name, same declared
// values, same extras.
func (r *Record) Equal(o *Record) bool {
	if r.schema.Name() != o.schema.Name() {
		return false
	}
	if len(r.values) != len(o.values) || len(r.extra) != len(o.extra) {
		return false
	}
	return reflect.DeepEqual(nonNil(r.values), nonNil(o.values)) &&
		reflect.DeepEqual(nonNil(r.extra), nonNil(o.extra))
}

func (r Record) String() string {
	var b strings.Builder
	b.WriteString(r.schema.Name())
	b.WriteString("{")
	for i, e := range r.Entries() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", e.Key, e.Value)
	}
	b.WriteString("}")
	return b.String()
}

func (r *Record) setDeclared(f Field, value any) error {
	if absent(value) {
		delete(r.values, f.Name)
		return nil
	}
	v, err := coerce(f.Kind, value)
	if err != nil {
		return &ShapeError{
			Record:   r.schema.Name(),
			Field:    f.Name,
			Expected: f.Kind,
			Actual:   typeName(value),
			Err:      err,
		}
	}
	if r.values == nil {
		r.values = make(map[string]any)
	}
	r.values[f.Name] = v
	return nil
}

func (r *Record) setExtra(name string, value any) {
	if r.extra == nil {
		r.extra = make(map[string]any)
	}
	r.extra[name] = value
}

// absent reports whether a declared value stands for a missing field.
func absent(v any) bool {
	switch list := v.(type) {
	case nil:
		return true
	case []string:
		return list == nil
	case []any:
		return list == nil
	}
	return false
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
