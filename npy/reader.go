package npy

import (
	"fmt"
	"io"
	"os"
)

// Read decodes one complete .npy stream from r into an owned buffer.
func Read(r io.Reader) (*Array, error) {
	h, _, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	buf := NewBuffer(h.NumBytes())
	if _, err := io.ReadFull(r, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("npy: reading payload: %w", err)
	}
	return NewArray(h, buf)
}

// Load reads the .npy file at path into an owned buffer.
func Load(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("npy: %w", err)
	}
	defer func() { _ = f.Close() }()

	a, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("npy: loading %s: %w", path, err)
	}
	return a, nil
}

// LoadMapped memory-maps the payload of the .npy file at path instead of
// copying it to the heap. The mapping is private: concurrent readers are
// safe, concurrent writers to the file are not. Close the returned array
// to release the mapping.
func LoadMapped(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("npy: %w", err)
	}
	defer func() { _ = f.Close() }()

	h, offset, err := ReadHeader(f)
	if err != nil {
		return nil, fmt.Errorf("npy: loading %s: %w", path, err)
	}
	buf, err := MapBuffer(path, int64(offset), int64(h.NumBytes()))
	if err != nil {
		return nil, err
	}
	a, err := NewArray(h, buf)
	if err != nil {
		_ = buf.Close()
		return nil, err
	}
	return a, nil
}
