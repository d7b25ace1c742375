package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/catbits/pkg/errors"
)

// Local yields files from disk.
type Local struct {
	paths []string
	pos   int
}

// Dir lists the regular files in dir whose extension matches one of exts
// (case-insensitive), sorted by file name. Subdirectories are not visited.
func Dir(dir string, exts ...string) (*Local, error) {
	if err := errors.ValidatePath(dir); err != nil {
		return nil, err
	}
	if len(exts) == 0 {
		exts = []string{DefaultExtension}
	}
	want := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if err := errors.ValidateExtension(ext); err != nil {
			return nil, err
		}
		want[strings.ToLower(ext)] = true
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "source directory %s", dir)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if want[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return &Local{paths: paths}, nil
}

// Files yields the given paths in the given order.
func Files(paths ...string) (*Local, error) {
	for _, p := range paths {
		if err := errors.ValidatePath(p); err != nil {
			return nil, err
		}
	}
	return &Local{paths: slices.Clone(paths)}, nil
}

// Next reads the next file.
func (l *Local) Next(ctx context.Context) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	if l.pos >= len(l.paths) {
		return Item{}, io.EOF
	}
	path := l.paths[l.pos]
	l.pos++

	item := Item{Name: filepath.Base(path)}
	data, err := os.ReadFile(path)
	if err != nil {
		return item, errors.Wrap(errors.ErrCodeImageLoad, err, "read %s", path)
	}
	item.Data = data
	return item, nil
}

// Len returns the number of files.
func (l *Local) Len() int { return len(l.paths) }

// Paths returns the files in yield order.
func (l *Local) Paths() []string { return slices.Clone(l.paths) }

// Close does nothing.
func (l *Local) Close() error { return nil }

var _ Source = (*Local)(nil)
