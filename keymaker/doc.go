// Package keymaker turns arbitrary logical keys into deterministic byte
// sequences for hashing. The default implementation builds a canonical
// JSON-like form in memory; the streaming implementation produces identical
// bytes through a bounded-memory spool.
package keymaker
