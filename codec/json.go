package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JSONConfig configures the JSON codec.
type JSONConfig struct {
	// Indent is the indentation applied to each level of the document.
	// Empty produces compact output.
	Indent string
	// EscapeHTML controls escaping of <, >, and & inside strings.
	EscapeHTML bool
	// UseNumber decodes numbers as json.Number instead of float64.
	UseNumber bool
	// EncodeHook, when set, transforms the value before it is marshalled.
	EncodeHook func(any) (any, error)
	// DecodeHook, when set, transforms the value after it is unmarshalled.
	DecodeHook func(any) (any, error)
}

// jsonCodec stores envelopes as a JSON document. Only JSON-representable
// values round-trip; decoding into an untyped envelope yields float64 (or
// json.Number with UseNumber), string, bool, []any, and map[string]any.
type jsonCodec struct {
	cfg JSONConfig
}

// NewJSON constructs the JSON codec.
func NewJSON(cfg JSONConfig) (Codec, error) {
	return &jsonCodec{cfg: cfg}, nil
}

type jsonEnvelope struct {
	Value      any        `json:"value"`
	Expiration *time.Time `json:"expiration"`
}

func (j *jsonCodec) Encode(env Envelope) ([]byte, error) {
	value := env.Value
	if j.cfg.EncodeHook != nil {
		var err error
		if value, err = j.cfg.EncodeHook(value); err != nil {
			return nil, fmt.Errorf("json encode hook: %w", err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(j.cfg.EscapeHTML)
	if j.cfg.Indent != "" {
		enc.SetIndent("", j.cfg.Indent)
	}
	if err := enc.Encode(jsonEnvelope{Value: value, Expiration: env.Expiration}); err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (j *jsonCodec) Decode(data []byte) (Envelope, error) {
	var env jsonEnvelope
	dec := json.NewDecoder(bytes.NewReader(data))
	if j.cfg.UseNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, &DecodeError{Codec: j.Name(), Cause: err}
	}

	value := env.Value
	if j.cfg.DecodeHook != nil {
		var err error
		if value, err = j.cfg.DecodeHook(value); err != nil {
			return Envelope{}, &DecodeError{Codec: j.Name(), Cause: err}
		}
	}
	return Envelope{Value: value, Expiration: env.Expiration}, nil
}

func (j *jsonCodec) Name() string      { return "json" }
func (j *jsonCodec) Binary() bool      { return false }
func (j *jsonCodec) Extension() string { return "json" }
