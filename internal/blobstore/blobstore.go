package blobstore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNotExist reports that no blob exists under the requested name.
var ErrNotExist = fs.ErrNotExist

// Info describes a stored blob.
type Info struct {
	Name string
	Size int64
}

// Store is a minimal key-value blob store: whole-value reads and writes
// addressed by file name. The cache core treats the filesystem purely
// through this interface.
type Store interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Remove(name string) error
	Size(name string) (int64, error)
	List(ext string) ([]Info, error)
}

// FSStore stores blobs as files in a single directory.
type FSStore struct {
	dir string
	log zerolog.Logger
}

// NewFS creates the directory if missing, resolves it to an absolute path,
// and returns a store rooted there.
func NewFS(dir string, logger zerolog.Logger) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: cannot create directory %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("blobstore: cannot resolve directory %s: %w", dir, err)
	}
	return &FSStore{
		dir: abs,
		log: logger.With().Str("component", "blobstore").Logger(),
	}, nil
}

// Dir returns the absolute directory the store is rooted at.
func (s *FSStore) Dir() string { return s.dir }

// Read returns the entire blob. A missing blob reports ErrNotExist; any
// other failure propagates unchanged.
func (s *FSStore) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", name, ErrNotExist)
		}
		return nil, err
	}
	return data, nil
}

// Write replaces the blob in a single whole-file write.
func (s *FSStore) Write(name string, data []byte) error {
	return os.WriteFile(filepath.Join(s.dir, name), data, 0o644)
}

// Remove deletes the blob. A missing blob reports ErrNotExist.
func (s *FSStore) Remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && os.IsNotExist(err) {
		return fmt.Errorf("blob %s: %w", name, ErrNotExist)
	}
	return err
}

// Size returns the blob's size in bytes.
func (s *FSStore) Size(name string) (int64, error) {
	fi, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("blob %s: %w", name, ErrNotExist)
		}
		return 0, err
	}
	return fi.Size(), nil
}

// List returns every blob whose name carries the extension (without dot).
func (s *FSStore) List(ext string) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	suffix := "." + ext
	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			s.log.Debug().Err(err).Str("name", entry.Name()).Msg("skipping unreadable entry")
			continue
		}
		infos = append(infos, Info{Name: entry.Name(), Size: fi.Size()})
	}
	return infos, nil
}
