package npy

import "errors"

var (
	// ErrFormat reports a malformed or unsupported header: bad magic,
	// unsupported version, big-endian descriptor, or a broken dictionary.
	ErrFormat = errors.New("npy: invalid header")

	// ErrShapeMismatch reports append-mode shape or field incompatibility.
	ErrShapeMismatch = errors.New("npy: shape mismatch")

	// ErrTypeMismatch reports a requested element type whose size disagrees
	// with the stored word size.
	ErrTypeMismatch = errors.New("npy: type mismatch")

	// ErrNotFound reports an absent column label or archive variable.
	ErrNotFound = errors.New("npy: not found")

	// ErrLabelCount reports a label count that disagrees with the field
	// count on structured writes.
	ErrLabelCount = errors.New("npy: label count mismatch")
)
