// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package record

import (
	"fmt"
	"strings"
)

// Kind is the semantic type of a declared field.
type Kind int

const (
	String Kind = iota + 1
	Integer
	StringList
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Integer:
		return "integer"
	case StringList:
		return "list<string>"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind by name in schema listings.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Field declares one named, typed field of a schema. Required is advisory:
// it documents what the producing side always supplies and is never
// enforced by a Record.
type Field struct {
	Name     string `json:"name" yaml:"name"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	Required bool   `json:"required" yaml:"required"`
}

// Schema is a named, versioned, ordered field table. The order is the
// serialization order of declared fields.
type Schema struct {
	name    string
	version int
	fields  []Field
	index   map[string]int
}

// NewSchema builds a schema from an ordered field list. It returns an error
// for empty or duplicated field names and for unknown kinds.
func NewSchema(name string, version int, fields ...Field) (*Schema, error) {
	s := &Schema{
		name:    name,
		version: version,
		fields:  make([]Field, 0, len(fields)),
		index:   make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := s.add(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustSchema is NewSchema for package-level field tables; it panics on a
// malformed table.
func MustSchema(name string, version int, fields ...Field) *Schema {
	s, err := NewSchema(name, version, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) add(f Field) error {
	if f.Name == "" {
		return fmt.Errorf("schema %s: empty field name", s.name)
	}
	if f.Kind < String || f.Kind > StringList {
		return fmt.Errorf("schema %s: field %s has unknown %s", s.name, f.Name, f.Kind)
	}
	if _, dup := s.index[f.Name]; dup {
		return fmt.Errorf("schema %s: duplicate field %s", s.name, f.Name)
	}
	s.index[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
	return nil
}

// Extend derives the next revision of s by appending fields. Existing fields
// keep their position, so a record written under s stays valid under the
// result and the new names simply stop being extras.
func (s *Schema) Extend(version int, fields ...Field) (*Schema, error) {
	if version <= s.version {
		return nil, fmt.Errorf("schema %s: revision %d does not follow %d", s.name, version, s.version)
	}
	all := make([]Field, 0, len(s.fields)+len(fields))
	all = append(all, s.fields...)
	all = append(all, fields...)
	return NewSchema(s.name, version, all...)
}

// MustExtend is Extend that panics on a malformed revision.
func (s *Schema) MustExtend(version int, fields ...Field) *Schema {
	next, err := s.Extend(version, fields...)
	if err != nil {
		panic(err)
	}
	return next
}

// Name returns the external schema type name (e.g. "bismarkParams").
func (s *Schema) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Version returns the schema revision number.
func (s *Schema) Version() int {
	if s == nil {
		return 0
	}
	return s.version
}

// Fields returns a copy of the ordered field table.
func (s *Schema) Fields() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Lookup returns the declared field with the given name.
func (s *Schema) Lookup(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Declares reports whether name is a declared field of s.
func (s *Schema) Declares(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

func (s *Schema) String() string {
	if s == nil {
		return "<nil schema>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%d(", s.name, s.version)
	for i, f := range s.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(":")
		b.WriteString(f.Kind.String())
		if f.Required {
			b.WriteString("!")
		}
	}
	b.WriteString(")")
	return b.String()
}

// Key is a typed handle on a declared field name. The same key can be
// declared by several schemas; Required is chosen per schema.
type Key[T any] struct {
	name string
	kind Kind
}

// StringKey returns a handle on a string field.
func StringKey(name string) Key[string] { return Key[string]{name: name, kind: String} }

// IntKey returns a handle on an integer field.
func IntKey(name string) Key[int64] { return Key[int64]{name: name, kind: Integer} }

// StringsKey returns a handle on an ordered string list field.
func StringsKey(name string) Key[[]string] { return Key[[]string]{name: name, kind: StringList} }

// Name returns the external field name.
func (k Key[T]) Name() string { return k.name }

// Required declares the key as a field the producer always supplies.
func (k Key[T]) Required() Field { return Field{Name: k.name, Kind: k.kind, Required: true} }

// Optional declares the key as an optional field.
func (k Key[T]) Optional() Field { return Field{Name: k.name, Kind: k.kind} }

// Holder carries a Record. *Record is one; record types that embed a
// Record bind their schema in Bound.
type Holder interface {
	Bound() *Record
}

// Get returns the typed value of the field in h. The second result is false
// when the field is absent or, for an undeclared name, when the extra value
// does not have type T.
func (k Key[T]) Get(h Holder) (T, bool) {
	var zero T
	v, ok := h.Bound().Get(k.name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	if list, isList := any(t).([]string); isList {
		return any(cloneStrings(list)).(T), true
	}
	return t, true
}

// Set stores v under the field name in h.
func (k Key[T]) Set(h Holder, v T) error {
	return h.Bound().Set(k.name, v)
}
