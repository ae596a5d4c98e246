// Package codec provides the serialization strategies used to persist cache
// entries: a gob-based general-object codec, a textual JSON codec, and a
// compact MessagePack codec.
//
// Each codec serializes an Envelope (value plus optional expiration) using
// its own wire format and declares the file extension entries carry on disk.
// Codec selection is a pure strategy choice; a bucket never depends on
// anything beyond the Codec interface.
//
// Configuration is validated when a codec is constructed. Invalid option
// values surface as *ConfigError from the constructor, never from Encode or
// Decode. Parse failures during Decode surface as *DecodeError, which is the
// signal a bucket uses to treat a stored entry as unusable without touching
// the file.
package codec
