package bucket

import (
	"time"

	"github.com/goliatone/go-bucket-cache/codec"
)

// Entry is the in-memory representation of one stored value and its
// expiration metadata. Entries are owned by the bucket that created them:
// they are made on first write of a key, mutated in place on overwrite, and
// dropped when the backing file goes away.
type Entry struct {
	value      any
	expiration *time.Time
}

// Value returns the cached value.
func (e *Entry) Value() any { return e.value }

// Expiration returns the absolute expiration time and whether one is set.
func (e *Entry) Expiration() (time.Time, bool) {
	if e.expiration == nil {
		return time.Time{}, false
	}
	return *e.expiration, true
}

// expired reports whether the entry's stored expiration has passed. Entries
// without an expiration never expire by this check.
func (e *Entry) expired(now time.Time) bool {
	return e.expiration != nil && now.After(*e.expiration)
}

func (e *Entry) encode(c codec.Codec) ([]byte, error) {
	return c.Encode(codec.Envelope{Value: e.value, Expiration: e.expiration})
}

func decodeEntry(c codec.Codec, data []byte) (*Entry, error) {
	env, err := c.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Entry{value: env.Value, expiration: env.Expiration}, nil
}
