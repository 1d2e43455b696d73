package npy

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
	"unsafe"
)

// Source produces packed records one at a time, on demand. Next fills dst
// (exactly one record stride) with the next element's bytes and returns
// io.EOF once exhausted. Writers pull from a Source so that an entire
// array never has to be materialized in memory.
type Source interface {
	Next(dst []byte) error
}

// FuncSource adapts a function to the Source interface.
type FuncSource func(dst []byte) error

func (f FuncSource) Next(dst []byte) error { return f(dst) }

// SliceSource yields the elements of a Go slice as packed records.
type SliceSource[T Scalar] struct {
	vals []T
	pos  int
}

func NewSliceSource[T Scalar](vals []T) *SliceSource[T] {
	return &SliceSource[T]{vals: vals}
}

func (s *SliceSource[T]) Next(dst []byte) error {
	if s.pos >= len(s.vals) {
		return io.EOF
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(&s.vals[s.pos])), sizeOf[T]())
	copy(dst, src)
	s.pos++
	return nil
}

// StructSource yields the exported scalar fields of struct values as
// packed records, in declaration order. Field labels default to the Go
// field names; explicit labels override them and must match the field
// count.
type StructSource[T any] struct {
	recs   []T
	pos    int
	fields []Field
	idx    []int
}

func NewStructSource[T any](recs []T, labels ...string) (*StructSource[T], error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("npy: record type %v is not a struct", t)
	}

	var (
		fields []Field
		idx    []int
	)
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, ok := tagOf(sf.Type.Kind())
		if !ok {
			return nil, fmt.Errorf("npy: record field %s has non-scalar type %v",
				sf.Name, sf.Type)
		}
		fields = append(fields, Field{Label: sf.Name, Tag: tag, Size: int(sf.Type.Size())})
		idx = append(idx, i)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("npy: record type %v has no exported scalar fields", t)
	}

	if len(labels) > 0 {
		if len(labels) != len(fields) {
			return nil, fmt.Errorf("%w: %d labels for %d fields",
				ErrLabelCount, len(labels), len(fields))
		}
		for i, l := range labels {
			fields[i].Label = l
		}
	}

	return &StructSource[T]{recs: recs, fields: fields, idx: idx}, nil
}

// Fields returns the field descriptors derived from the struct type,
// suitable for building the write header.
func (s *StructSource[T]) Fields() []Field { return s.fields }

func (s *StructSource[T]) Next(dst []byte) error {
	if s.pos >= len(s.recs) {
		return io.EOF
	}
	v := reflect.ValueOf(&s.recs[s.pos]).Elem()
	off := 0
	for k, i := range s.idx {
		putScalar(dst[off:], v.Field(i))
		off += s.fields[k].Size
	}
	s.pos++
	return nil
}

// putScalar writes one scalar reflect value little-endian into dst.
func putScalar(dst []byte, v reflect.Value) {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		putUint(dst, uint64(v.Int()), int(v.Type().Size()))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		putUint(dst, v.Uint(), int(v.Type().Size()))
	case reflect.Float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v.Float())))
	case reflect.Float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v.Float()))
	case reflect.Complex64:
		c := complex64(v.Complex())
		binary.LittleEndian.PutUint32(dst, math.Float32bits(real(c)))
		binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(imag(c)))
	case reflect.Complex128:
		c := v.Complex()
		binary.LittleEndian.PutUint64(dst, math.Float64bits(real(c)))
		binary.LittleEndian.PutUint64(dst[8:], math.Float64bits(imag(c)))
	}
}

func putUint(dst []byte, u uint64, size int) {
	switch size {
	case 1:
		dst[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(u))
	case 8:
		binary.LittleEndian.PutUint64(dst, u)
	}
}
