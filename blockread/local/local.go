// Package local implements the casc.BlockReader contract over the data
// archive files ("data.###") of a local storage directory, adapted from
// the teacher's disk-backed cache for its open/seek/read-at shape and
// atomic size bookkeeping, repurposed here to index archive files by
// integer rather than by content hash.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrArchiveNotFound is returned when the requested archive index has no
// corresponding data.### file under the configured root.
var ErrArchiveNotFound = errors.New("blockread/local: archive not found")

// ErrNotSupported is returned by ReadOnline: a local Reader has no CDN
// endpoint to fall back to.
var ErrNotSupported = errors.New("blockread/local: online reads not supported")

// Reader serves range reads against a local storage's data archives. It
// lazily opens each archive file on first use and keeps the handle open
// for the Reader's lifetime; Close releases every handle.
type Reader struct {
	dir string

	mu     sync.Mutex
	opened map[int]*os.File
}

// New returns a Reader rooted at dir (conventionally "<storage>/Data/data").
func New(dir string) *Reader {
	return &Reader{dir: dir, opened: make(map[int]*os.File)}
}

// archivePath builds the conventional "data.###" file name for index idx.
func (r *Reader) archivePath(idx int) string {
	return filepath.Join(r.dir, fmt.Sprintf("data.%03d", idx))
}

func (r *Reader) archive(idx int) (*os.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.opened[idx]; ok {
		return f, nil
	}
	f, err := os.Open(r.archivePath(idx)) //nolint:gosec // path built from a caller-controlled archive index, not user input
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blockread/local: archive %d: %w", idx, ErrArchiveNotFound)
		}
		return nil, err
	}
	r.opened[idx] = f
	return f, nil
}

// ReadLocal reads encodedSize bytes at offset within archive archiveIndex,
// implementing the casc.BlockReader local-locator path.
func (r *Reader) ReadLocal(archiveIndex int, offset int64, encodedSize int64) ([]byte, error) {
	f, err := r.archive(archiveIndex)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, encodedSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, offset, encodedSize), buf); err != nil {
		return nil, fmt.Errorf("blockread/local: read archive %d at %d: %w", archiveIndex, offset, err)
	}
	return buf, nil
}

// ReadOnline implements the casc.BlockReader interface's online path; a
// local Reader has no CDN to fall back to.
func (r *Reader) ReadOnline(_ context.Context, _ [9]byte, _ int64) ([]byte, error) {
	return nil, ErrNotSupported
}

// Close releases every archive file handle opened by this Reader.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for idx, f := range r.opened {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.opened, idx)
	}
	return firstErr
}
