package io

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/catbits/pkg/errors"
)

func TestFileResetAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "random_sequence.bin")
	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile() error: %v", err)
	}

	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := f.Reset(); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if n, _ := f.Size(); n != 0 {
		t.Fatalf("Size() after Reset = %d, want 0", n)
	}

	if err := f.Append([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := f.Append([]byte{4}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("contents = %v, want [1 2 3 4]", got)
	}
	if f.Path() != path {
		t.Errorf("Path() = %q, want %q", f.Path(), path)
	}
}

func TestFileSizeMissing(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "missing.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if n, err := f.Size(); err != nil || n != 0 {
		t.Errorf("Size() = %d, %v; want 0, nil", n, err)
	}
}

func TestFileAppendFailure(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir) // a directory cannot be opened for writing
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Append([]byte{1}); !errors.Is(err, errors.ErrCodeArtifactWrite) {
		t.Errorf("Append() error = %v, want ARTIFACT_WRITE", err)
	}
}

func TestNewFileInvalidPath(t *testing.T) {
	if _, err := NewFile(""); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("NewFile(\"\") error = %v, want INVALID_PATH", err)
	}
}

func TestBuffer(t *testing.T) {
	var b Buffer
	_ = b.Append([]byte("ab"))
	_ = b.Append([]byte("c"))
	if got := string(b.Bytes()); got != "abc" {
		t.Errorf("Bytes() = %q, want %q", got, "abc")
	}
	_ = b.Reset()
	if len(b.Bytes()) != 0 {
		t.Error("Reset() should clear the buffer")
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.bin"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestReadAll(t *testing.T) {
	data, err := ReadAll(strings.NewReader("xyz"))
	if err != nil || string(data) != "xyz" {
		t.Errorf("ReadAll() = %q, %v", data, err)
	}
}

func TestTextSink(t *testing.T) {
	var buf Buffer
	sink := NewText(&buf)
	if err := sink.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append([]byte{0xA5, 0x01}); err != nil {
		t.Fatal(err)
	}
	if got, want := string(buf.Bytes()), "1010010100000001"; got != want {
		t.Errorf("text artifact = %q, want %q", got, want)
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"10100101", []byte{0xA5}, false},
		{"1010 0101\n0000 0001\n", []byte{0xA5, 0x01}, false},
		{"101", []byte{0xA0}, false},
		{"", nil, false},
		{"abc", nil, true},
	}
	for _, tt := range tests {
		got, err := DecodeText([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("DecodeText(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("DecodeText(%q) = %x, want %x", tt.in, got, tt.want)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	if got := DetectFormat([]byte("0101\n")); got != FormatText {
		t.Errorf("DetectFormat(text) = %s", got)
	}
	if got := DetectFormat([]byte{0x00, 0xff}); got != FormatBinary {
		t.Errorf("DetectFormat(binary) = %s", got)
	}
}
