// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
)

var (
	errFractional = errors.New("fractional value for an integer field")
	errOverflow   = errors.New("value out of int64 range")
	errElement    = errors.New("list element is not a string")
	errMismatch   = errors.New("type mismatch")
)

// coerce converts v to the canonical Go type of kind: string, int64 or a
// fresh []string. It never substitutes a default.
func coerce(kind Kind, v any) (any, error) {
	switch kind {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Integer:
		return coerceInt(v)
	case StringList:
		return coerceStrings(v)
	}
	return nil, errMismatch
}

func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("parsing number %q: %w", n.String(), err)
		}
		return floatToInt(f)
	}
	return nil, errMismatch
}

func uintToInt(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, errOverflow
	}
	return int64(u), nil
}

func floatToInt(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, errFractional
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, errOverflow
	}
	return int64(f), nil
}

func coerceStrings(v any) (any, error) {
	switch list := v.(type) {
	case []string:
		return cloneStrings(list), nil
	case []any:
		out := make([]string, len(list))
		for i, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %s: %w", i, typeName(e), errElement)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, errMismatch
}

// typeName names the dynamic type of v the way JSON would describe it,
// falling back to the Go type for anything else.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case float32, float64:
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return reflect.TypeOf(v).String()
}
