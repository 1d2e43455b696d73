package npy

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Buffer is the storage behind an Array: either an owned heap slice or a
// private memory mapping of a file region. Both variants expose the same
// raw byte view, stable for the Buffer's whole lifetime. A Buffer belongs
// to exactly one Array; it is never shared or duplicated.
type Buffer struct {
	data []byte
	// mapping is the full mmap region including page-alignment slack.
	// nil for the owned variant.
	mapping []byte
}

// NewBuffer allocates an owned buffer of exactly n bytes. Contents are
// not guaranteed to be zeroed by the format contract, though Go zeroes
// them in practice.
func NewBuffer(n int) *Buffer {
	return &Buffer{data: make([]byte, n)}
}

// MapBuffer memory-maps length bytes of the file at path starting at
// offset. The mapping is private (copy-on-write): writes through the
// buffer never reach the file, and later writers to the file are not
// observed. Because mapping requires page-aligned offsets, the region is
// mapped from the preceding page boundary and the logical view starts at
// the alignment remainder.
func MapBuffer(path string, offset, length int64) (*Buffer, error) {
	if length == 0 {
		return NewBuffer(0), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("npy: mapping %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	pageSize := int64(unix.Getpagesize())
	rem := offset % pageSize

	m, err := unix.Mmap(
		int(f.Fd()),
		offset-rem,
		int(length+rem),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, fmt.Errorf("npy: mapping %s: %w", path, err)
	}

	return &Buffer{
		data:    m[rem : rem+length],
		mapping: m,
	}, nil
}

// Bytes returns the raw byte view. The returned slice aliases the
// buffer's storage and stays valid until Close.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the logical length in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Mapped reports whether the buffer is backed by a memory mapping.
func (b *Buffer) Mapped() bool { return b.mapping != nil }

// Close releases the mapping, if any. Owned buffers are left to the
// garbage collector. Close is idempotent.
func (b *Buffer) Close() error {
	if b.mapping == nil {
		b.data = nil
		return nil
	}
	m := b.mapping
	b.mapping = nil
	b.data = nil
	return unix.Munmap(m)
}
