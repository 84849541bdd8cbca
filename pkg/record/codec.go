// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"go.yaml.in/yaml/v3"
)

// MarshalJSON writes the record as one JSON object in Entries order.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, e := range r.Entries() {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s.%s: %w", r.schema.Name(), e.Key, err)
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON decodes into the schema the record is already bound to.
func (r *Record) UnmarshalJSON(data []byte) error {
	return r.DecodeJSON(r.schema, data)
}

// DecodeJSON replaces r with the record decoded from a JSON object under s.
// Numbers are kept as json.Number; extra numeric fields re-encode exactly.
func (r *Record) DecodeJSON(s *Schema, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("decoding %s: %w", s.Name(), err)
	}
	decoded, err := FromMap(s, m)
	if err != nil {
		return err
	}
	*r = decoded
	return nil
}

// MarshalYAML returns an ordered mapping node in Entries order.
func (r Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range r.Entries() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key}
		val, err := yamlValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding %s.%s: %w", r.schema.Name(), e.Key, err)
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// yamlValue encodes v as a node. json.Number values, at any depth, become
// plain !!int or !!float scalars carrying the original text.
func yamlValue(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case json.Number:
		tag := "!!float"
		if _, err := t.Int64(); err == nil {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: t.String()}, nil
	case map[string]any:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range slices.Sorted(maps.Keys(t)) {
			val, err := yamlValue(t[k])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, val)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range t {
			val, err := yamlValue(e)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, val)
		}
		return node, nil
	}
	node := &yaml.Node{}
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	return node, nil
}

// UnmarshalYAML decodes into the schema the record is already bound to.
func (r *Record) UnmarshalYAML(node *yaml.Node) error {
	return r.DecodeYAML(r.schema, node)
}

// DecodeYAML replaces r with the record decoded from a YAML mapping under s.
func (r *Record) DecodeYAML(s *Schema, node *yaml.Node) error {
	var m map[string]any
	if err := node.Decode(&m); err != nil {
		return fmt.Errorf("decoding %s: %w", s.Name(), err)
	}
	decoded, err := FromMap(s, m)
	if err != nil {
		return err
	}
	*r = decoded
	return nil
}

// Clone returns a record that shares no maps or slices with r. Extra
// values themselves are copied shallowly.
func (r *Record) Clone() Record {
	out := New(r.schema)
	for k, v := range r.values {
		if out.values == nil {
			out.values = make(map[string]any, len(r.values))
		}
		if list, isList := v.([]string); isList {
			v = cloneStrings(list)
		}
		out.values[k] = v
	}
	for k, v := range r.extra {
		out.setExtra(k, v)
	}
	return out
}
