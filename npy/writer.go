package npy

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// writeChunkSize bounds the pack buffer used for chunked record writes.
const writeChunkSize = 1 << 16

// WriteArray encodes the header for h and streams h.NumVals() records
// from src into w.
func WriteArray(w io.Writer, h Header, src Source) error {
	layout, err := NewLayout(h.Fields)
	if err != nil {
		return err
	}
	hb, err := EncodeHeader(h)
	if err != nil {
		return err
	}
	if _, err := w.Write(hb); err != nil {
		return fmt.Errorf("npy: writing header: %w", err)
	}
	return writeRecords(w, layout.Stride(), src, h.NumVals())
}

// writeRecords pulls n records from src and writes them to w in chunks,
// so arrays of any size stream through a bounded buffer.
func writeRecords(w io.Writer, stride int, src Source, n int) error {
	if n == 0 {
		return nil
	}
	perChunk := max(writeChunkSize/stride, 1)
	buf := make([]byte, min(n, perChunk)*stride)

	written := 0
	for written < n {
		count := min(n-written, perChunk)
		for i := range count {
			if err := src.Next(buf[i*stride : (i+1)*stride]); err != nil {
				if err == io.EOF {
					return fmt.Errorf("npy: source exhausted after %d of %d records: %w",
						written+i, n, io.ErrUnexpectedEOF)
				}
				return fmt.Errorf("npy: reading record %d: %w", written+i, err)
			}
		}
		if _, err := w.Write(buf[:count*stride]); err != nil {
			return fmt.Errorf("npy: writing records: %w", err)
		}
		written += count
	}
	return nil
}

// Write streams vals as a plain .npy array with the given shape and
// memory order. The value count must match the shape.
func Write[T Scalar](w io.Writer, vals []T, shape []int, order MemoryOrder) error {
	h := Header{Fields: []Field{FieldOf[T]("")}, Order: order, Shape: shape}
	if len(vals) != h.NumVals() {
		return fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(vals), shape)
	}
	return WriteArray(w, h, NewSliceSource(vals))
}

// Save writes vals to a new .npy file at path, replacing any existing
// file.
func Save[T Scalar](path string, vals []T, shape []int, order MemoryOrder) error {
	h := Header{Fields: []Field{FieldOf[T]("")}, Order: order, Shape: shape}
	if len(vals) != h.NumVals() {
		return fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(vals), shape)
	}
	return saveFile(path, h, NewSliceSource(vals))
}

// Save1D writes vals as a one-dimensional row-major array.
func Save1D[T Scalar](path string, vals []T) error {
	return Save(path, vals, []int{len(vals)}, RowMajor)
}

// SaveRecords writes recs as a structured .npy file. Field descriptors
// are derived from the exported scalar fields of T; labels, if given,
// rename them and must match the field count.
func SaveRecords[T any](path string, recs []T, shape []int, order MemoryOrder, labels ...string) error {
	src, err := NewStructSource(recs, labels...)
	if err != nil {
		return err
	}
	h := Header{Fields: src.Fields(), Order: order, Shape: shape}
	if len(recs) != h.NumVals() {
		return fmt.Errorf("%w: %d records for shape %v", ErrShapeMismatch, len(recs), shape)
	}
	return saveFile(path, h, src)
}

func saveFile(path string, h Header, src Source) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("npy: %w", err)
	}
	if err := WriteArray(f, h, src); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("npy: closing %s: %w", path, err)
	}
	return nil
}

// Append grows the array stored at path with vals. The new data's shape
// must match the stored shape in every dimension except the leading one
// (row-major) or trailing one (column-major), and the field descriptors
// and memory order must match exactly. If the file does not exist, Append
// behaves like Save.
func Append[T Scalar](path string, vals []T, shape []int, order MemoryOrder) error {
	h := Header{Fields: []Field{FieldOf[T]("")}, Order: order, Shape: shape}
	if len(vals) != h.NumVals() {
		return fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(vals), shape)
	}
	return appendFile(path, h, NewSliceSource(vals))
}

// AppendRecords is Append for structured arrays.
func AppendRecords[T any](path string, recs []T, shape []int, order MemoryOrder, labels ...string) error {
	src, err := NewStructSource(recs, labels...)
	if err != nil {
		return err
	}
	h := Header{Fields: src.Fields(), Order: order, Shape: shape}
	if len(recs) != h.NumVals() {
		return fmt.Errorf("%w: %d records for shape %v", ErrShapeMismatch, len(recs), shape)
	}
	return appendFile(path, h, src)
}

func appendFile(path string, h Header, src Source) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, os.ErrNotExist) {
		return saveFile(path, h, src)
	}
	if err != nil {
		return fmt.Errorf("npy: %w", err)
	}
	defer func() { _ = f.Close() }()

	// All compatibility checks run against the freshly decoded on-disk
	// header, never a cached shape.
	disk, hdrSize, err := ReadHeader(f)
	if err != nil {
		return fmt.Errorf("npy: appending to %s: %w", path, err)
	}
	grown, err := grownShape(disk, h)
	if err != nil {
		return fmt.Errorf("npy: appending to %s: %w", path, err)
	}
	newHeader := Header{Fields: disk.Fields, Order: disk.Order, Shape: grown}

	layout, err := NewLayout(h.Fields)
	if err != nil {
		return err
	}

	// Regrow the header inside its existing padded length when it fits,
	// so the payload stays put and new records are simply appended.
	hb, err := encodeHeaderPadded(newHeader, hdrSize)
	if err != nil {
		return err
	}
	if len(hb) == hdrSize {
		if _, err := f.WriteAt(hb, 0); err != nil {
			return fmt.Errorf("npy: rewriting header of %s: %w", path, err)
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("npy: %w", err)
		}
		if err := writeRecords(f, layout.Stride(), src, h.NumVals()); err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("npy: closing %s: %w", path, err)
		}
		return nil
	}

	// The grown dictionary crossed a padding boundary: rebuild the file
	// through a temp path and swap it in.
	return rebuildFile(path, f, hdrSize, disk, newHeader, layout, src, h.NumVals())
}

// grownShape validates append compatibility and returns the combined
// shape. The axis that grows is the leading dimension for row-major data
// and the trailing dimension for column-major data.
func grownShape(disk, h Header) ([]int, error) {
	if !fieldsEqual(disk.Fields, h.Fields) {
		return nil, fmt.Errorf("%w: field descriptors do not match (stored %v, new %v)",
			ErrShapeMismatch, disk.Fields, h.Fields)
	}
	if disk.Order != h.Order {
		return nil, fmt.Errorf("%w: memory order does not match (stored %v, new %v)",
			ErrShapeMismatch, disk.Order, h.Order)
	}
	if len(disk.Shape) != len(h.Shape) {
		return nil, fmt.Errorf("%w: ranks do not match (stored %d, new %d)",
			ErrShapeMismatch, len(disk.Shape), len(h.Shape))
	}
	if len(disk.Shape) == 0 {
		return nil, fmt.Errorf("%w: cannot append to a scalar", ErrShapeMismatch)
	}

	axis := 0
	if disk.Order == ColumnMajor {
		axis = len(disk.Shape) - 1
	}
	for i := range disk.Shape {
		if i != axis && disk.Shape[i] != h.Shape[i] {
			return nil, fmt.Errorf("%w: dimension %d does not match (stored %d, new %d)",
				ErrShapeMismatch, i, disk.Shape[i], h.Shape[i])
		}
	}

	grown := make([]int, len(disk.Shape))
	copy(grown, disk.Shape)
	grown[axis] += h.Shape[axis]
	return grown, nil
}

func rebuildFile(path string, old *os.File, oldHdrSize int, disk, newHeader Header,
	layout *Layout, src Source, n int) error {

	tmpPath := fmt.Sprintf("%s.rebuild-%s", path, uuid.NewString())
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("npy: %w", err)
	}
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	hb, err := EncodeHeader(newHeader)
	if err != nil {
		return fail(err)
	}
	if _, err := tmp.Write(hb); err != nil {
		return fail(fmt.Errorf("npy: writing header: %w", err))
	}
	if _, err := old.Seek(int64(oldHdrSize), io.SeekStart); err != nil {
		return fail(fmt.Errorf("npy: %w", err))
	}
	if _, err := io.CopyN(tmp, old, int64(disk.NumBytes())); err != nil {
		return fail(fmt.Errorf("npy: copying existing payload: %w", err))
	}
	if err := writeRecords(tmp, layout.Stride(), src, n); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(fmt.Errorf("npy: closing %s: %w", tmpPath, err))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("npy: %w", err)
	}
	return nil
}
