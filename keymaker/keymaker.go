package keymaker

import (
	"io"
	"reflect"
	"sort"
)

// KeyMaker converts an arbitrary logical key into a deterministic byte
// sequence used to compute a cache-entry hash. The returned reader yields a
// finite stream; calling MakeKey again with an equal value must yield the
// same bytes, which is how callers restart the sequence.
type KeyMaker interface {
	MakeKey(v any) (io.ReadCloser, error)
}

// StateProvider is the explicit "serialize for caching" capability. Values
// that implement it are keyed by their reported state instead of their
// fields.
type StateProvider interface {
	CacheState() any
}

// InstanceState extracts the cacheable state of a value, typically a method
// receiver. The capability chain, in order: CacheState if implemented, the
// value's exported fields (embedded structs flattened, so an embedding type
// inherits and extends the embedded type's fields), else the value itself.
func InstanceState(v any) any {
	if sp, ok := v.(StateProvider); ok {
		return sp.CacheState()
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		state := make(map[string]any)
		collectFields(rv, state)
		return state
	}
	return v
}

// collectFields flattens exported fields into state, embedded structs first
// so that fields declared on the outer type shadow embedded ones.
func collectFields(rv reflect.Value, state map[string]any) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.Anonymous {
			fv := rv.Field(i)
			for fv.Kind() == reflect.Ptr && !fv.IsNil() {
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				collectFields(fv, state)
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		state[field.Name] = rv.Field(i).Interface()
	}
}

// fieldNames returns the sorted keys of a state map.
func fieldNames(state map[string]any) []string {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
