// Package memoize caches function results through a bucket.
//
// A Wrapper is built once per function from its declared parameter metadata
// (Go reflection cannot recover parameter names, so they are stated in the
// Config) and a callable. Each call is normalized into keyword form and
// folded into a signature together with the function's identity (for
// methods, the receiver's state as well), then hashed through the owning
// bucket's key maker. Equal normalized calls share one cache entry:
//
//	w, err := memoize.Wrap(b, addOne, memoize.Config{
//		Name:   "addOne",
//		Params: []string{"a"},
//	})
//	v, err := w.Call(1)              // invokes addOne, caches 2
//	v, err = w.CallNamed(nil, map[string]any{"a": 1}) // cache hit
//
// A Nocache parameter bypasses the lookup but still overwrites the entry;
// Ignore removes parameters (or a whole variadic bucket) from the
// signature; OnHit observes cache hits only. After any call that actually
// invoked the function, the signature is rehashed: a mismatch means the
// function mutated its own cache key and surfaces as
// *NonCacheableMutationError rather than caching an inconsistent result.
package memoize
