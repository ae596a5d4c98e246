// Package bucket implements a process-local, disk-persisted key/value cache.
//
// # Overview
//
// A Bucket maps arbitrary keys to values through one file per entry in a
// root directory. Keys are serialized by a keymaker.KeyMaker, qualified with
// the codec name, and hashed to a fixed-width hex digest that names both the
// in-memory index slot and the on-disk file ({hash}.{extension}). Values are
// serialized by a codec.Codec together with their expiration metadata.
//
//	b, err := bucket.New(dir,
//		bucket.WithCodec(jsonCodec),
//		bucket.WithLifetime(time.Hour),
//	)
//	if err != nil { ... }
//
//	_ = b.Set("answer", 42)
//	v, err := b.Get("answer")
//	var keyErr *bucket.KeyError
//	if errors.As(err, &keyErr) {
//		// never stored, deleted, expired, or unreadable
//	}
//
// # Entry lifecycle
//
// Per key a bucket moves between four states: absent, in memory, on disk
// (file exists but not yet loaded), and expired. Get loads from memory
// first, then from disk; Set always writes through and refreshes the
// existing entry in place; UnloadKey evicts only the memory entry so the
// next Get round-trips the file; Delete removes both. Detecting an expired
// entry during any load deletes its file and memory entry before the
// failure surfaces.
//
// # Expiration
//
// An entry's expiration is fixed at write time as writeTime + lifetime.
// Loads additionally treat an entry as expired when its stored expiration
// lies after now + the bucket's current lifetime: such an entry was written
// under a longer (or absent) lifetime setting, and shrinking or newly
// imposing a lifetime retroactively invalidates it. SetLifetime changes the
// policy without rewriting files; stale entries die lazily on access.
//
// # Deferred writes
//
// DeferredWriteBucket buffers Set calls in the shared memory index and
// persists them in one pass on Sync. The DeferredWrite helper scopes that
// pattern: it always syncs and merges back into the originating bucket,
// even when the scoped function fails.
//
// # Errors
//
// Cache misses of every kind (never stored, deleted, expired, undecodable)
// surface as *KeyError and are recoverable. I/O failures other than
// "file not found" propagate unchanged. Invalid construction arguments
// surface as *ConfigError from New, never later.
//
// # Concurrency
//
// Buckets assume single-process, single-threaded use and exclusive
// ownership of their root directory. Simultaneous writers to the same hash
// race with last-writer-wins semantics; no locking is provided.
package bucket
