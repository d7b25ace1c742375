package io

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/matzehuels/catbits/pkg/errors"
)

// Sink is an append-only byte destination cleared once per batch.
type Sink interface {
	Reset() error
	Append(p []byte) error
}

// File is a Sink backed by a file on disk.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a sink writing to path, creating parent directories.
// The file itself is created lazily by Reset or Append.
func NewFile(path string) (*File, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeArtifactWrite, err, "create %s", dir)
		}
	}
	return &File{path: path}, nil
}

// Path returns the artifact location.
func (f *File) Path() string { return f.path }

// Reset truncates the artifact to zero bytes, creating it if needed.
func (f *File) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.Create(f.path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArtifactWrite, err, "truncate %s", f.path)
	}
	return fh.Close()
}

// Append writes p to the end of the artifact in a single write call.
func (f *File) Append(p []byte) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArtifactWrite, err, "open %s", f.path)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = errors.Wrap(errors.ErrCodeArtifactWrite, cerr, "close %s", f.path)
		}
	}()

	info, err := fh.Stat()
	if err != nil {
		return errors.Wrap(errors.ErrCodeArtifactWrite, err, "stat %s", f.path)
	}
	prev := info.Size()

	n, err := fh.Write(p)
	if err == nil && n != len(p) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	if err == nil {
		err = fh.Sync()
	}
	if err != nil {
		_ = fh.Truncate(prev)
		return errors.Wrap(errors.ErrCodeArtifactWrite, err, "append to %s", f.path)
	}
	return nil
}

// Size returns the current artifact length, 0 if it does not exist.
func (f *File) Size() (int64, error) {
	info, err := os.Stat(f.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Buffer is an in-memory Sink.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Reset clears the buffer.
func (b *Buffer) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
	return nil
}

// Append adds p to the buffer.
func (b *Buffer) Append(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	return nil
}

// Bytes returns a copy of the accumulated bytes.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

var (
	_ Sink = (*File)(nil)
	_ Sink = (*Buffer)(nil)
)
