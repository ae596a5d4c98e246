package keymaker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
)

// maxDepth bounds the canonical walk; cyclic values cannot be keyed.
const maxDepth = 64

// Default is the default KeyMaker. It serializes values to a canonical
// JSON-like text: map keys sorted, struct fields sorted by name, pointers
// dereferenced. Values the base encoding cannot represent fall back, in
// order, to the CacheState capability, their exported fields, and finally a
// debug string. The output is stable across processes for any value built
// from data (as opposed to functions or channels).
type Default struct{}

// NewDefault creates the default key maker.
func NewDefault() *Default {
	return &Default{}
}

// MakeKey implements KeyMaker. The full canonical form is built in memory.
func (d *Default) MakeKey(v any) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v, 0); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

// writeCanonical serializes v into w in canonical form. Shared by the
// default and streaming key makers so both produce identical bytes.
func writeCanonical(w io.Writer, v any, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("keymaker: value nesting exceeds %d levels (cyclic key?)", maxDepth)
	}
	if v == nil {
		_, err := io.WriteString(w, "null")
		return err
	}

	if sp, ok := v.(StateProvider); ok {
		return writeCanonical(w, sp.CacheState(), depth+1)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			_, err := io.WriteString(w, "null")
			return err
		}
		return writeCanonical(w, rv.Elem().Interface(), depth+1)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			_, err := io.WriteString(w, "null")
			return err
		}
		// []byte keeps json's base64 form for compactness.
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return writeLeaf(w, v)
		}
		return writeSequence(w, rv, depth)

	case reflect.Map:
		if rv.IsNil() {
			_, err := io.WriteString(w, "null")
			return err
		}
		return writeMap(w, rv, depth)

	case reflect.Struct:
		// Types with their own JSON form (time.Time and friends) keep it.
		if _, ok := v.(json.Marshaler); ok {
			return writeLeaf(w, v)
		}
		return writeStruct(w, rv, depth)

	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return writeLeaf(w, v)

	default:
		// Funcs, channels, complex numbers: keyed by their debug string.
		return writeLeaf(w, fmt.Sprintf("%T(%v)", v, v))
	}
}

func writeLeaf(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		data, err = json.Marshal(fmt.Sprintf("%v", v))
		if err != nil {
			return err
		}
	}
	_, err = w.Write(data)
	return err
}

func writeSequence(w io.Writer, rv reflect.Value, depth int) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := writeCanonical(w, rv.Index(i).Interface(), depth+1); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]")
	return err
}

// writeMap emits map pairs with keys serialized to canonical strings and
// sorted, so equal maps produce equal bytes regardless of iteration order.
func writeMap(w io.Writer, rv reflect.Value, depth int) error {
	type pair struct {
		key   string
		value reflect.Value
	}
	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		var kb bytes.Buffer
		if err := writeCanonical(&kb, iter.Key().Interface(), depth+1); err != nil {
			return err
		}
		pairs = append(pairs, pair{key: kb.String(), value: iter.Value()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}
	for i, p := range pairs {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		keyText := p.key
		if len(keyText) == 0 || keyText[0] != '"' {
			quoted, err := json.Marshal(keyText)
			if err != nil {
				return err
			}
			keyText = string(quoted)
		}
		if _, err := io.WriteString(w, keyText+":"); err != nil {
			return err
		}
		if err := writeCanonical(w, p.value.Interface(), depth+1); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}

func writeStruct(w io.Writer, rv reflect.Value, depth int) error {
	state := make(map[string]any)
	collectFields(rv, state)
	if len(state) == 0 {
		// No exported state to key on, fall back to the debug string.
		return writeLeaf(w, fmt.Sprintf("%+v", rv.Interface()))
	}

	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}
	for i, name := range fieldNames(state) {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		quoted, err := json.Marshal(name)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(quoted, ':')); err != nil {
			return err
		}
		if err := writeCanonical(w, state[name], depth+1); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}
