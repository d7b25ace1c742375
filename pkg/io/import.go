package io

import (
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/catbits/pkg/errors"
)

// MaxArtifactSize bounds how much ReadFile and ReadAll will load.
const MaxArtifactSize = 1 << 30

// ReadFile loads the artifact at path.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadAll(f)
}

// ReadAll reads r up to MaxArtifactSize bytes.
func ReadAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if len(data) > MaxArtifactSize {
		return nil, errors.New(errors.ErrCodeInvalidInput, "artifact exceeds %d bytes", MaxArtifactSize)
	}
	return data, nil
}
