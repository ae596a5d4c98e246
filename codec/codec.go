package codec

import (
	"fmt"
	"time"
)

// Envelope is the unit of storage a codec serializes: the cached value plus
// its expiration metadata. A nil Expiration means the entry never expires.
type Envelope struct {
	Value      any
	Expiration *time.Time
}

// Codec converts an Envelope to bytes and back. Implementations declare
// whether their wire format is binary and which file extension their entries
// use on disk. The three provided codecs (gob, JSON, MessagePack) form a
// closed set; custom codecs only need to satisfy this interface.
type Codec interface {
	// Encode serializes the envelope using the codec's native wire format.
	Encode(env Envelope) ([]byte, error)
	// Decode parses bytes produced by Encode. Failures caused by truncated,
	// malformed, or configuration-incompatible data are reported as
	// *DecodeError; callers treat any other error as fatal.
	Decode(data []byte) (Envelope, error)
	// Name returns the codec identifier. It qualifies key hashes so that two
	// codecs never collide on the same logical key.
	Name() string
	// Binary reports whether the format is binary rather than textual.
	Binary() bool
	// Extension returns the canonical file extension, without the dot.
	Extension() string
}

// DecodeError reports that a byte stream could not be parsed by a codec.
// It is the only failure a bucket is permitted to translate into a missing
// key; lower-level I/O errors propagate unchanged.
type DecodeError struct {
	Codec string
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec %s: cannot decode entry: %v", e.Codec, e.Cause)
}

// Unwrap returns the underlying parse error.
func (e *DecodeError) Unwrap() error { return e.Cause }

// ConfigError reports an invalid codec configuration value. It is returned
// at construction time, never during encode or decode.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "codec config error in field " + e.Field + ": " + e.Message
}
