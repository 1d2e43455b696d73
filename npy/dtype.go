package npy

import (
	"fmt"
	"reflect"
)

// Scalar is the set of Go types that map onto NumPy primitive dtypes.
type Scalar interface {
	~bool |
		~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 |
		~complex64 | ~complex128
}

// FieldOf returns the field descriptor for the Go scalar type T with the
// given label. The tag follows the NumPy convention: signed integers 'i',
// unsigned 'u', floats 'f', complex 'c', bool 'b'.
func FieldOf[T Scalar](label string) Field {
	t := reflect.TypeFor[T]()
	tag, ok := tagOf(t.Kind())
	if !ok {
		// Unreachable: the Scalar constraint admits only kinds tagOf knows.
		panic(fmt.Sprintf("npy: no dtype for %v", t))
	}
	return Field{Label: label, Tag: tag, Size: int(t.Size())}
}

// sizeOf returns the in-memory byte width of T.
func sizeOf[T Scalar]() int {
	return int(reflect.TypeFor[T]().Size())
}

func tagOf(k reflect.Kind) (byte, bool) {
	switch k {
	case reflect.Bool:
		return 'b', true
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return 'i', true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return 'u', true
	case reflect.Float32, reflect.Float64:
		return 'f', true
	case reflect.Complex64, reflect.Complex128:
		return 'c', true
	default:
		return 0, false
	}
}
