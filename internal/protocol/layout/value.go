package layout

import (
	"math"
	"reflect"
)

// Fields holds the named field values of one record. Lets and unused items
// never appear in it.
type Fields map[string]any

// Variant is one member of a variant set together with its field values.
type Variant struct {
	Name   string
	Fields Fields
}

// VariantKey names the variant in exported and loosely typed values.
const VariantKey = "variant"

// Export converts a decoded value into plain maps and slices suitable for
// TOML or JSON encoding. Variants become maps carrying VariantKey and
// sentinel wrappers become their value or the "none"/"any" keyword.
func Export(v any) any {
	switch x := v.(type) {
	case Fields:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Export(e)
		}
		return out
	case Variant:
		out := make(map[string]any, len(x.Fields)+1)
		for k, e := range x.Fields {
			out[k] = Export(e)
		}
		out[VariantKey] = x.Name
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Export(e)
		}
		return out
	case interface{ Plain() any }:
		return x.Plain()
	}
	return v
}

// intOf returns the integer meaning of a field value used in a formula.
func intOf(v any) (int64, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return toInt64(v)
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func lengthOf(v any) (int64, bool) {
	switch x := v.(type) {
	case string:
		return int64(len(x)), true
	case []byte:
		return int64(len(x)), true
	case []any:
		return int64(len(x)), true
	}
	return 0, false
}
