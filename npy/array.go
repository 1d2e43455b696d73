package npy

import (
	"bytes"
	"fmt"
	"iter"
	"slices"
	"unsafe"
)

// Array is a loaded NumPy array: immutable metadata plus the buffer
// holding the packed element bytes. An Array exclusively owns its Buffer;
// Close releases it. One load/save operation per Array at a time — the
// caller serializes concurrent access.
type Array struct {
	fields  []Field
	shape   []int
	order   MemoryOrder
	layout  *Layout
	numVals int
	buf     *Buffer
}

// NewArray wraps buf with the metadata in h. Ownership of buf transfers
// to the returned Array. The buffer length must exactly equal the payload
// size implied by shape and fields.
func NewArray(h Header, buf *Buffer) (*Array, error) {
	layout, err := NewLayout(h.Fields)
	if err != nil {
		return nil, err
	}
	if h.NumBytes() != buf.Len() {
		return nil, fmt.Errorf("%w: header describes %d bytes, buffer holds %d",
			ErrShapeMismatch, h.NumBytes(), buf.Len())
	}
	return &Array{
		fields:  slices.Clone(h.Fields),
		shape:   slices.Clone(h.Shape),
		order:   h.Order,
		layout:  layout,
		numVals: h.NumVals(),
		buf:     buf,
	}, nil
}

// Header returns a copy of the array's metadata.
func (a *Array) Header() Header {
	return Header{
		Fields: slices.Clone(a.fields),
		Order:  a.order,
		Shape:  slices.Clone(a.shape),
	}
}

// Shape returns a copy of the dimension sizes. Empty for a scalar.
func (a *Array) Shape() []int { return slices.Clone(a.shape) }

// Fields returns a copy of the field descriptors.
func (a *Array) Fields() []Field { return slices.Clone(a.fields) }

// Order returns the memory order recorded in the header.
func (a *Array) Order() MemoryOrder { return a.order }

// NumVals returns the element count.
func (a *Array) NumVals() int { return a.numVals }

// ItemSize returns the byte width of one element.
func (a *Array) ItemSize() int { return a.layout.Stride() }

// NumBytes returns the total payload size.
func (a *Array) NumBytes() int { return a.numVals * a.layout.Stride() }

// Raw returns the packed payload bytes. The slice aliases the array's
// buffer and stays valid until Close.
func (a *Array) Raw() []byte { return a.buf.Bytes() }

// Mapped reports whether the payload is memory-mapped rather than held
// on the heap.
func (a *Array) Mapped() bool { return a.buf.Mapped() }

// Close releases the underlying buffer. The array must not be used
// afterwards.
func (a *Array) Close() error { return a.buf.Close() }

// Equal reports whether two arrays have identical metadata (shape, field
// labels, tags and word sizes, memory order) and byte-for-byte identical
// payloads.
func (a *Array) Equal(other *Array) bool {
	if other == nil {
		return a == nil
	}
	return shapesEqual(a.shape, other.shape) &&
		fieldsEqual(a.fields, other.fields) &&
		a.order == other.order &&
		bytes.Equal(a.Raw(), other.Raw())
}

// Data reinterprets the payload as a []T without copying. T's size must
// equal the record stride; for plain arrays that is the single field's
// word size. The returned slice aliases the buffer.
func Data[T Scalar](a *Array) ([]T, error) {
	if sizeOf[T]() != a.layout.Stride() {
		return nil, fmt.Errorf("%w: element is %d bytes, %d requested",
			ErrTypeMismatch, a.layout.Stride(), sizeOf[T]())
	}
	if a.numVals == 0 {
		return nil, nil
	}
	b := a.buf.Bytes()
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), a.numVals), nil
}

// Flat returns a lazy, restartable sequence over all elements of a plain
// (single-field) array.
func Flat[T Scalar](a *Array) (iter.Seq[T], error) {
	if a.layout.NumFields() != 1 || a.fields[0].Label != "" {
		return nil, fmt.Errorf("%w: flat iteration needs a plain array", ErrTypeMismatch)
	}
	if err := a.layout.checkField(0, sizeOf[T]()); err != nil {
		return nil, err
	}
	return strideSeq[T](a.buf.Bytes(), 0, a.layout.Stride(), a.numVals), nil
}

// Column returns a lazy sequence over one labeled field across all
// records: a fixed-stride view starting at the field's offset, without
// copying. The label is resolved by first linear match.
func Column[T Scalar](a *Array, label string) (iter.Seq[T], error) {
	i, err := a.layout.Lookup(label)
	if err != nil {
		return nil, err
	}
	if err := a.layout.checkField(i, sizeOf[T]()); err != nil {
		return nil, err
	}
	return strideSeq[T](a.buf.Bytes(), a.layout.Offset(i), a.layout.Stride(), a.numVals), nil
}

func strideSeq[T Scalar](data []byte, offset, stride, count int) iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := range count {
			v := *(*T)(unsafe.Pointer(&data[offset+i*stride]))
			if !yield(v) {
				return
			}
		}
	}
}

// Record is one packed element of a structured array. Field values are
// read through checked accessors; the underlying bytes alias the array's
// buffer.
type Record struct {
	layout *Layout
	data   []byte
}

// Records returns a lazy sequence over all packed records.
func (a *Array) Records() iter.Seq[Record] {
	stride := a.layout.Stride()
	data := a.buf.Bytes()
	return func(yield func(Record) bool) {
		for i := range a.numVals {
			r := Record{layout: a.layout, data: data[i*stride : (i+1)*stride]}
			if !yield(r) {
				return
			}
		}
	}
}

// CheckSizes validates the caller's per-field type sizes up front, for
// use before iterating Records with Get.
func (a *Array) CheckSizes(sizes ...int) error {
	return a.layout.CheckSizes(sizes)
}

// Bytes returns the raw bytes of field i within the record.
func (r Record) Bytes(i int) []byte {
	off := r.layout.Offset(i)
	return r.data[off : off+r.layout.Field(i).Size]
}

// Get reads field i of the record as T. The requested size is validated
// against the stored word size before any reinterpretation.
func Get[T Scalar](r Record, i int) (T, error) {
	var zero T
	if err := r.layout.checkField(i, sizeOf[T]()); err != nil {
		return zero, err
	}
	return *(*T)(unsafe.Pointer(&r.data[r.layout.Offset(i)])), nil
}
