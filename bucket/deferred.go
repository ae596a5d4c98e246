package bucket

import "errors"

// DeferredWriteBucket behaves like the bucket it was created from, except
// that writes mutate only the shared memory index until Sync persists them
// in one pass. The index is shared by reference: entries written through
// either handle are visible to both.
type DeferredWriteBucket struct {
	Bucket
}

// NewDeferredWrite creates a deferred-write view over b. The view shares
// b's memory index, directory, codec, and key maker; its lifetime is copied
// and may diverge afterwards.
func NewDeferredWrite(b *Bucket) *DeferredWriteBucket {
	view := *b
	view.deferWrites = true
	return &DeferredWriteBucket{Bucket: view}
}

// Sync persists every non-expired in-memory entry to disk. Expired entries
// are skipped; Get performs the expiration side effects, Sync only avoids
// pointless writes.
func (d *DeferredWriteBucket) Sync() error {
	var firstErr error
	d.index.Range(func(hash string, e *Entry) bool {
		if e.expired(d.now()) {
			return true
		}
		if err := d.persistEntry(hash, e); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}

// UnloadKey forces a Sync before evicting the key from memory, so deferred
// state is never lost to an unload.
func (d *DeferredWriteBucket) UnloadKey(key any) error {
	if err := d.Sync(); err != nil {
		return err
	}
	return d.Bucket.UnloadKey(key)
}

// DeferredWrite runs fn with a deferred-write view over b. On exit the view
// is unconditionally synced and its index merged back into b, even when fn
// fails; fn's error is reported joined with any sync failure. Writes made
// inside fn are therefore visible to b after the call.
func DeferredWrite(b *Bucket, fn func(*DeferredWriteBucket) error) error {
	d := NewDeferredWrite(b)
	fnErr := fn(d)

	syncErr := d.Sync()
	// Defined union back into the originating bucket. The index is shared,
	// so this is a formality today, but the merge is part of the contract
	// rather than an aliasing accident.
	d.index.Range(func(hash string, e *Entry) bool {
		b.index.Store(hash, e)
		return true
	})
	return errors.Join(fnErr, syncErr)
}
