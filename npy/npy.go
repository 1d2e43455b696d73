// Package npy reads and writes the NumPy array serialization format.
//
// A .npy stream is a magic string, a format version, a length-prefixed
// ASCII dictionary describing dtype, memory order and shape, followed by
// the raw element bytes. This package handles format version 1.0 with
// little-endian data only, for both plain arrays (one primitive value per
// element) and structured arrays (fixed-width packed records of labeled
// fields).
package npy

import "fmt"

const (
	// MagicNPY is the six-byte magic at the start of every .npy stream.
	MagicNPY = "\x93NUMPY"

	// Supported format version. Any other version is rejected.
	VersionMajor uint8 = 1
	VersionMinor uint8 = 0

	// preambleSize is magic + major + minor + uint16 dictionary length.
	preambleSize = 10

	// headerAlign: preamble plus dictionary text must be a multiple of this.
	headerAlign = 16
)

// MemoryOrder records the element layout of a multi-dimensional array.
type MemoryOrder uint8

const (
	// RowMajor is C order: the last dimension varies fastest.
	RowMajor MemoryOrder = iota
	// ColumnMajor is Fortran order: the first dimension varies fastest.
	ColumnMajor
)

func (o MemoryOrder) String() string {
	switch o {
	case RowMajor:
		return "C"
	case ColumnMajor:
		return "Fortran"
	default:
		return fmt.Sprintf("order(%d)", uint8(o))
	}
}

// Field describes one value slot of an array element. A plain array has
// exactly one Field with an empty label; a structured array has one Field
// per record member, in on-disk order.
type Field struct {
	// Label is the field name. Empty for plain arrays.
	Label string
	// Tag is the dtype kind character: 'i', 'u', 'f', 'c' or 'b'.
	Tag byte
	// Size is the stored width of the field in bytes.
	Size int
}

func (f Field) String() string {
	if f.Label == "" {
		return fmt.Sprintf("<%c%d", f.Tag, f.Size)
	}
	return fmt.Sprintf("('%s', '<%c%d')", f.Label, f.Tag, f.Size)
}

// Header is the decoded metadata of a .npy stream. It is built once, at
// write time from caller-supplied fields, or at read time by DecodeHeader,
// and never mutated afterwards.
type Header struct {
	Fields []Field
	Order  MemoryOrder
	Shape  []int
}

// NumVals returns the element count: the product over Shape. An empty
// shape denotes a scalar and counts as one element.
func (h *Header) NumVals() int {
	n := 1
	for _, d := range h.Shape {
		n *= d
	}
	return n
}

// ItemSize returns the byte width of one element: the sum of all field
// sizes. Structured records are packed with no padding.
func (h *Header) ItemSize() int {
	n := 0
	for _, f := range h.Fields {
		n += f.Size
	}
	return n
}

// NumBytes returns the total payload size in bytes.
func (h *Header) NumBytes() int {
	return h.NumVals() * h.ItemSize()
}

// validate checks the invariants every header must satisfy before it is
// encoded or used to construct an Array.
func (h *Header) validate() error {
	if len(h.Fields) == 0 {
		return fmt.Errorf("%w: header has no fields", ErrFormat)
	}
	for i, f := range h.Fields {
		if err := validateField(f); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	if h.Order != RowMajor && h.Order != ColumnMajor {
		return fmt.Errorf("%w: invalid memory order %d", ErrFormat, h.Order)
	}
	for i, d := range h.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension %d at axis %d", ErrFormat, d, i)
		}
	}
	return nil
}

func validateField(f Field) error {
	switch f.Tag {
	case 'i', 'u', 'f', 'c':
	case 'b':
		if f.Size != 1 {
			return fmt.Errorf("%w: boolean field must be 1 byte, got %d", ErrFormat, f.Size)
		}
	default:
		return fmt.Errorf("%w: unknown type tag %q", ErrFormat, f.Tag)
	}
	if f.Size <= 0 {
		return fmt.Errorf("%w: field size must be positive, got %d", ErrFormat, f.Size)
	}
	return nil
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
