package npy

import "fmt"

// Layout computes the packed byte layout of one record from an ordered
// field list: field k starts at the sum of the sizes of fields 0..k-1 and
// the stride is the sum of all sizes. No alignment padding is inserted;
// this matches NumPy's on-disk structured dtype convention, not a natural
// in-memory struct layout.
//
// A Layout is built once per record schema and never modified.
type Layout struct {
	fields  []Field
	offsets []int
	stride  int
	hasBool bool
}

// NewLayout validates the field list and computes offsets and stride.
func NewLayout(fields []Field) (*Layout, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: layout needs at least one field", ErrFormat)
	}
	l := &Layout{
		fields:  fields,
		offsets: make([]int, len(fields)),
	}
	for i, f := range fields {
		if err := validateField(f); err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		l.offsets[i] = l.stride
		l.stride += f.Size
		if f.Tag == 'b' {
			l.hasBool = true
		}
	}
	return l, nil
}

// Stride returns the total byte width of one packed record.
func (l *Layout) Stride() int { return l.stride }

// NumFields returns the number of fields per record.
func (l *Layout) NumFields() int { return len(l.fields) }

// Field returns the descriptor of field i.
func (l *Layout) Field(i int) Field { return l.fields[i] }

// Offset returns the byte offset of field i within a record.
func (l *Layout) Offset(i int) int { return l.offsets[i] }

// HasBool reports whether any field is a boolean. Boolean storage is
// always exactly one byte; NewLayout rejects anything else.
func (l *Layout) HasBool() bool { return l.hasBool }

// Lookup finds a field by label, first match wins.
func (l *Layout) Lookup(label string) (int, error) {
	for i, f := range l.fields {
		if f.Label == label {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: column %q not in labels", ErrNotFound, label)
}

// CheckSizes compares the caller's requested per-field byte sizes against
// the stored word sizes, for callers that want validation before any
// reinterpretation takes place.
func (l *Layout) CheckSizes(sizes []int) error {
	if len(sizes) != len(l.fields) {
		return fmt.Errorf("%w: requested %d fields, record has %d",
			ErrTypeMismatch, len(sizes), len(l.fields))
	}
	for i, n := range sizes {
		if n != l.fields[i].Size {
			return fmt.Errorf("%w: field %d is %d bytes, requested %d",
				ErrTypeMismatch, i, l.fields[i].Size, n)
		}
	}
	return nil
}

// checkField verifies the requested size of a single field.
func (l *Layout) checkField(i, size int) error {
	if i < 0 || i >= len(l.fields) {
		return fmt.Errorf("%w: field index %d out of range", ErrNotFound, i)
	}
	if l.fields[i].Size != size {
		return fmt.Errorf("%w: field %d is %d bytes, requested %d",
			ErrTypeMismatch, i, l.fields[i].Size, size)
	}
	return nil
}
