package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// gobProtocolMax is the newest envelope protocol the gob codec understands.
const gobProtocolMax = 1

// GobConfig configures the gob codec.
type GobConfig struct {
	// Protocol selects the envelope protocol version written ahead of the
	// gob stream. Entries written with a different protocol fail to decode.
	// Zero selects the newest protocol.
	Protocol int
}

// DefaultGobConfig returns the configuration NewGob uses when passed the
// zero value.
func DefaultGobConfig() GobConfig {
	return GobConfig{Protocol: gobProtocolMax}
}

func (c GobConfig) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Protocol, validation.Min(0), validation.Max(gobProtocolMax)),
	)
}

// gobCodec serializes envelopes with encoding/gob. It is the general-object
// binary codec: any value whose concrete type is registered (see
// RegisterType) round-trips, including nested composites.
type gobCodec struct {
	cfg GobConfig
}

// NewGob constructs the gob codec. Invalid configuration values are
// reported immediately, not deferred to first use.
func NewGob(cfg GobConfig) (Codec, error) {
	if err := cfg.validate(); err != nil {
		return nil, &ConfigError{Field: "Protocol", Message: err.Error()}
	}
	if cfg.Protocol == 0 {
		cfg.Protocol = gobProtocolMax
	}
	return &gobCodec{cfg: cfg}, nil
}

type gobEnvelope struct {
	Value      any
	Expiration *time.Time
}

func (g *gobCodec) Encode(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(g.cfg.Protocol))
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(gobEnvelope{Value: env.Value, Expiration: env.Expiration}); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *gobCodec) Decode(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, &DecodeError{Codec: g.Name(), Cause: fmt.Errorf("empty stream")}
	}
	if int(data[0]) != g.cfg.Protocol {
		return Envelope{}, &DecodeError{
			Codec: g.Name(),
			Cause: fmt.Errorf("protocol %d does not match configured protocol %d", data[0], g.cfg.Protocol),
		}
	}
	var env gobEnvelope
	dec := gob.NewDecoder(bytes.NewReader(data[1:]))
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, &DecodeError{Codec: g.Name(), Cause: err}
	}
	return Envelope{Value: env.Value, Expiration: env.Expiration}, nil
}

func (g *gobCodec) Name() string      { return "gob" }
func (g *gobCodec) Binary() bool      { return true }
func (g *gobCodec) Extension() string { return "gob" }

// RegisterType records a concrete type with the gob codec's registry so
// values of that type can be stored through an interface-typed envelope.
// Common scalar and composite types are pre-registered.
func RegisterType(v any) {
	gob.Register(v)
}

func init() {
	gob.Register("")
	gob.Register(0)
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(false)
	gob.Register([]byte(nil))
	gob.Register([]any(nil))
	gob.Register([]string(nil))
	gob.Register(map[string]any(nil))
	gob.Register(map[string]string(nil))
	gob.Register(time.Time{})
}
