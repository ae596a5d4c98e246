package keymaker

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DefaultSpoolThreshold is the number of key bytes buffered in memory before
// the streaming key maker spills to a temp file.
const DefaultSpoolThreshold = 64 * 1024

// Streaming is a KeyMaker that produces the same bytes as Default through a
// bounded-memory buffer: the canonical form is written to an in-memory spool
// that spills to a temp file once it grows past the threshold. Use it when
// keys can be large; the byte output is identical to Default's.
type Streaming struct {
	threshold int
	dir       string
}

// NewStreaming creates a streaming key maker spooling to the system temp
// directory. A threshold <= 0 selects DefaultSpoolThreshold.
func NewStreaming(threshold int) *Streaming {
	if threshold <= 0 {
		threshold = DefaultSpoolThreshold
	}
	return &Streaming{threshold: threshold, dir: os.TempDir()}
}

// MakeKey implements KeyMaker. Close the returned reader to release the
// spool file, if one was created.
func (s *Streaming) MakeKey(v any) (io.ReadCloser, error) {
	sp := &spool{threshold: s.threshold, dir: s.dir}
	if err := writeCanonical(sp, v, 0); err != nil {
		sp.discard()
		return nil, err
	}
	return sp.reader()
}

// spool buffers writes in memory and spills to a uuid-named temp file once
// the threshold is exceeded.
type spool struct {
	buf       bytes.Buffer
	file      *os.File
	threshold int
	dir       string
}

func (s *spool) Write(p []byte) (int, error) {
	if s.file == nil && s.buf.Len()+len(p) > s.threshold {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}
	if s.file != nil {
		return s.file.Write(p)
	}
	return s.buf.Write(p)
}

func (s *spool) spill() error {
	name := filepath.Join(s.dir, "bucketcache-key-"+uuid.NewString())
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("keymaker: cannot create spool file: %w", err)
	}
	if _, err := f.Write(s.buf.Bytes()); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return err
	}
	s.buf.Reset()
	s.file = f
	return nil
}

func (s *spool) reader() (io.ReadCloser, error) {
	if s.file == nil {
		return io.NopCloser(bytes.NewReader(s.buf.Bytes())), nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		s.discard()
		return nil, err
	}
	return &spoolReader{file: s.file}, nil
}

func (s *spool) discard() {
	if s.file != nil {
		name := s.file.Name()
		_ = s.file.Close()
		_ = os.Remove(name)
		s.file = nil
	}
}

// spoolReader reads back a spilled key and removes the file on Close.
type spoolReader struct {
	file *os.File
}

func (r *spoolReader) Read(p []byte) (int, error) { return r.file.Read(p) }

func (r *spoolReader) Close() error {
	name := r.file.Name()
	err := r.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}
