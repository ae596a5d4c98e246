package bucket

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-bucket-cache/codec"
	"github.com/goliatone/go-bucket-cache/internal/blobstore"
	"github.com/goliatone/go-bucket-cache/keymaker"
)

// Bucket is a dictionary-like cache backed by one file per entry in a root
// directory. Keys may be arbitrary values; they are serialized through the
// bucket's key maker and addressed by a codec-qualified 128-bit hash. Values
// are serialized by the bucket's codec and optionally expire after the
// configured lifetime.
type Bucket struct {
	store       *blobstore.FSStore
	codec       codec.Codec
	keymaker    keymaker.KeyMaker
	lifetime    time.Duration
	index       *xsync.MapOf[string, *Entry]
	log         zerolog.Logger
	now         func() time.Time
	deferWrites bool
}

// New creates a bucket rooted at path. The directory is created if missing
// and resolved to an absolute path. Invalid options are reported here, never
// deferred to first use.
func New(path string, opts ...Option) (*Bucket, error) {
	cfg := config{
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.codec == nil {
		c, err := codec.NewGob(codec.DefaultGobConfig())
		if err != nil {
			return nil, err
		}
		cfg.codec = c
	}
	if cfg.keymaker == nil {
		cfg.keymaker = keymaker.NewDefault()
	}

	logger := cfg.logger.With().Str("component", "bucket").Logger()
	store, err := blobstore.NewFS(path, cfg.logger)
	if err != nil {
		return nil, err
	}

	return &Bucket{
		store:    store,
		codec:    cfg.codec,
		keymaker: cfg.keymaker,
		lifetime: cfg.effectiveLifetime(),
		index:    xsync.NewMapOf[string, *Entry](),
		log:      logger,
		now:      cfg.now,
	}, nil
}

// Path returns the absolute root directory of the bucket.
func (b *Bucket) Path() string { return b.store.Dir() }

// Codec returns the active codec.
func (b *Bucket) Codec() codec.Codec { return b.codec }

// Lifetime returns the configured entry lifetime; zero means entries do not
// expire.
func (b *Bucket) Lifetime() time.Duration { return b.lifetime }

// SetLifetime changes the lifetime applied to subsequent writes. Existing
// entries are not rewritten; they are invalidated lazily on the next access
// if their stored expiration is inconsistent with the new lifetime.
func (b *Bucket) SetLifetime(d time.Duration) error {
	if d < 0 {
		return &ConfigError{Field: "lifetime", Message: "cannot be negative"}
	}
	b.lifetime = d
	return nil
}

// Get returns the value stored for key. It consults the memory index first
// and falls back to the entry file on disk. Missing, expired, and unreadable
// entries report *KeyError; expired entries are deleted as a side effect.
func (b *Bucket) Get(key any) (any, error) {
	e, err := b.getEntry(key)
	if err != nil {
		return nil, err
	}
	return e.value, nil
}

// GetEntry returns the entry stored for key, exposing expiration metadata
// alongside the value. Same failure behavior as Get.
func (b *Bucket) GetEntry(key any) (*Entry, error) {
	return b.getEntry(key)
}

func (b *Bucket) getEntry(key any) (*Entry, error) {
	hash, err := b.HashKey(key)
	if err != nil {
		return nil, err
	}
	e, err := b.loadHash(hash, true)
	if err != nil {
		if errors.Is(err, errKeyInvalid) {
			return nil, &KeyError{Key: abbreviate(key)}
		}
		return nil, err
	}
	return e, nil
}

// Set stores value under key, writing through to disk and updating the
// memory index. Overwriting refreshes the existing entry's value and
// expiration in place.
func (b *Bucket) Set(key, value any) error {
	hash, err := b.HashKey(key)
	if err != nil {
		return err
	}
	_, err = b.storeHash(hash, value)
	return err
}

// Delete removes key's file and memory entry. The key must currently
// resolve (equivalent to a successful Get); otherwise *KeyError is
// reported.
func (b *Bucket) Delete(key any) error {
	hash, err := b.HashKey(key)
	if err != nil {
		return err
	}
	if _, err := b.loadHash(hash, true); err != nil {
		if errors.Is(err, errKeyInvalid) {
			return &KeyError{Key: abbreviate(key)}
		}
		return err
	}
	if err := b.store.Remove(b.fileName(hash)); err != nil && !errors.Is(err, blobstore.ErrNotExist) {
		return err
	}
	b.index.Delete(hash)
	return nil
}

// Contains reports whether key currently resolves to a live value. Failures
// of any kind read as absence.
func (b *Bucket) Contains(key any) bool {
	_, err := b.getEntry(key)
	return err == nil
}

// UnloadKey evicts key's entry from the memory index, leaving the file on
// disk so the next Get re-reads it. Unknown keys are a no-op.
func (b *Bucket) UnloadKey(key any) error {
	hash, err := b.HashKey(key)
	if err != nil {
		return err
	}
	if _, err := b.loadHash(hash, true); err != nil {
		if errors.Is(err, errKeyInvalid) {
			return nil
		}
		return err
	}
	b.index.Delete(hash)
	return nil
}

// HashKey computes the codec-qualified hash for key: a 128-bit digest over
// the codec name followed by the key maker's byte sequence, rendered as
// fixed-width hex. The same hash names the entry in the memory index and
// stems its file on disk.
func (b *Bucket) HashKey(key any) (string, error) {
	rc, err := b.keymaker.MakeKey(key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := md5.New()
	if _, err := io.WriteString(h, b.codec.Name()); err != nil {
		return "", err
	}
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	digest := hex.EncodeToString(h.Sum(nil))
	b.log.Debug().Str("hash", digest).Str("key", abbreviate(key)).Msg("hashed key")
	return digest, nil
}

// LoadHash returns the entry stored under a previously computed hash,
// loading it from disk if it is not in memory. Missing, expired, and
// unreadable entries report *KeyError with the same side effects as Get.
func (b *Bucket) LoadHash(hash string) (*Entry, error) {
	e, err := b.loadHash(hash, true)
	if err != nil {
		if errors.Is(err, errKeyInvalid) {
			return nil, &KeyError{Key: fmt.Sprintf("<hash %s>", hash)}
		}
		return nil, err
	}
	return e, nil
}

// StoreHash stores value under a previously computed hash with Set's
// update-in-place semantics, and returns the resulting entry.
func (b *Bucket) StoreHash(hash string, value any) (*Entry, error) {
	return b.storeHash(hash, value)
}

func (b *Bucket) storeHash(hash string, value any) (*Entry, error) {
	e := b.updateOrMakeEntry(hash, value)
	if err := b.setEntryWithHash(hash, e); err != nil {
		return nil, err
	}
	return e, nil
}

// updateOrMakeEntry reuses the in-memory entry for hash when one is live,
// refreshing its value and expiration in place; otherwise it builds a new
// entry.
func (b *Bucket) updateOrMakeEntry(hash string, value any) *Entry {
	e, err := b.loadHash(hash, false)
	if err != nil {
		e = &Entry{}
	}
	e.value = value
	e.expiration = b.expirationFromNow()
	return e
}

func (b *Bucket) setEntryWithHash(hash string, e *Entry) error {
	if !b.deferWrites {
		if err := b.persistEntry(hash, e); err != nil {
			return err
		}
	}
	b.index.Store(hash, e)
	return nil
}

func (b *Bucket) persistEntry(hash string, e *Entry) error {
	data, err := e.encode(b.codec)
	if err != nil {
		return err
	}
	return b.store.Write(b.fileName(hash), data)
}

// loadHash resolves hash to a live entry. With loadFile set it falls back
// from the memory index to the entry file; without it, absence from memory
// is already a failure. Expiration policy runs on every resolution: an entry
// is expired when its stored expiration has passed, or when the current
// lifetime would have produced an earlier expiration than the stored one
// (the entry predates a shorter or newly imposed lifetime). Expired entries
// are deleted from disk and memory before the failure is reported.
func (b *Bucket) loadHash(hash string, loadFile bool) (*Entry, error) {
	e, inMemory := b.index.Load(hash)
	if !inMemory {
		if !loadFile {
			return nil, fmt.Errorf("hash %s not in memory index: %w", hash, errKeyInvalid)
		}
		name := b.fileName(hash)
		b.log.Debug().Str("file", name).Msg("attempting load from file")
		data, err := b.store.Read(name)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotExist) {
				return nil, errKeyFileNotFound
			}
			return nil, err
		}
		e, err = decodeEntry(b.codec, data)
		if err != nil {
			var de *codec.DecodeError
			if errors.As(err, &de) {
				b.log.Debug().Err(de).Str("file", name).Msg("codec failed to load file")
				return nil, fmt.Errorf("%v: %w", de, errKeyInvalid)
			}
			return nil, err
		}
		b.index.Store(hash, e)
	}

	lifetimeChanged := false
	if b.lifetime > 0 {
		// An entry expiring after now + current lifetime was saved under a
		// longer (or absent) lifetime setting; honor the stricter one.
		if e.expiration == nil {
			lifetimeChanged = true
		} else {
			lifetimeChanged = e.expiration.After(*b.expirationFromNow())
		}
		if lifetimeChanged {
			b.log.Warn().Str("hash", hash).Msg("entry expires after now + current lifetime; expiring key saved under previous cache settings")
		}
	}

	if e.expired(b.now()) || lifetimeChanged {
		if err := b.store.Remove(b.fileName(hash)); err != nil && !errors.Is(err, blobstore.ErrNotExist) {
			return nil, err
		}
		b.index.Delete(hash)
		return nil, errKeyExpired
	}
	return e, nil
}

func (b *Bucket) fileName(hash string) string {
	return hash + "." + b.codec.Extension()
}

// expirationFromNow returns now + lifetime, or nil when the bucket has no
// lifetime.
func (b *Bucket) expirationFromNow() *time.Time {
	if b.lifetime <= 0 {
		return nil
	}
	t := b.now().UTC().Add(b.lifetime)
	return &t
}
