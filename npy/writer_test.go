package npy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendGrowsLeadingDimension(t *testing.T) {
	t.Parallel()

	vals := make([]int32, 24)
	for i := range vals {
		vals[i] = int32(i)
	}
	more := make([]int32, 24)
	for i := range more {
		more[i] = int32(100 + i)
	}

	path := filepath.Join(t.TempDir(), "grow.npy")
	if err := Save(path, vals, []int{4, 3, 2}, RowMajor); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := Append(path, more, []int{4, 3, 2}, RowMajor); err != nil {
		t.Fatalf("append: %v", err)
	}

	a, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer func() { _ = a.Close() }()

	if !shapesEqual(a.Shape(), []int{8, 3, 2}) {
		t.Fatalf("shape after append: got %v want [8 3 2]", a.Shape())
	}
	got, err := Data[int32](a)
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	for i, v := range vals {
		if got[i] != v {
			t.Fatalf("original element %d: got %v want %v", i, got[i], v)
		}
	}
	for i, v := range more {
		if got[len(vals)+i] != v {
			t.Fatalf("appended element %d: got %v want %v", i, got[len(vals)+i], v)
		}
	}
}

func TestAppendColumnMajorGrowsTrailingDimension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fortran.npy")
	if err := Save(path, []float64{1, 2, 3, 4, 5, 6}, []int{2, 3}, ColumnMajor); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := Append(path, []float64{7, 8, 9, 10}, []int{2, 2}, ColumnMajor); err != nil {
		t.Fatalf("append: %v", err)
	}

	a, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer func() { _ = a.Close() }()

	if !shapesEqual(a.Shape(), []int{2, 5}) {
		t.Fatalf("shape after append: got %v want [2 5]", a.Shape())
	}
	got, err := Data[float64](a)
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	want := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("element %d: got %v want %v", i, got[i], v)
		}
	}
}

func TestAppendCreatesMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fresh.npy")
	if err := Append(path, []uint8{1, 2, 3}, []int{3}, RowMajor); err != nil {
		t.Fatalf("append to missing file: %v", err)
	}
	a, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer func() { _ = a.Close() }()
	if !shapesEqual(a.Shape(), []int{3}) {
		t.Fatalf("shape: got %v want [3]", a.Shape())
	}
}

func TestAppendRejectsIncompatibleData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "base.npy")
	if err := Save(path, []float64{1, 2, 3, 4, 5, 6}, []int{2, 3}, RowMajor); err != nil {
		t.Fatalf("save: %v", err)
	}

	cases := []struct {
		name string
		err  error
	}{
		{"wrong dtype", Append(path, []int64{1, 2, 3}, []int{1, 3}, RowMajor)},
		{"wrong order", Append(path, []float64{1, 2, 3}, []int{1, 3}, ColumnMajor)},
		{"wrong rank", Append(path, []float64{1, 2, 3}, []int{3}, RowMajor)},
		{"wrong fixed dim", Append(path, []float64{1, 2}, []int{1, 2}, RowMajor)},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, ErrShapeMismatch) {
			t.Fatalf("%s: got %v, want ErrShapeMismatch", tc.name, tc.err)
		}
	}

	scalar := filepath.Join(dir, "scalar.npy")
	if err := Save(scalar, []float64{1}, []int{}, RowMajor); err != nil {
		t.Fatalf("save scalar: %v", err)
	}
	if err := Append(scalar, []float64{2}, []int{}, RowMajor); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("append to scalar: got %v, want ErrShapeMismatch", err)
	}
}

func TestAppendRewritesHeaderInPlace(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "inplace.npy")
	if err := Save(path, []float64{1, 2}, []int{2}, RowMajor); err != nil {
		t.Fatalf("save: %v", err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := Append(path, []float64{3, 4}, []int{2}, RowMajor); err != nil {
		t.Fatalf("append: %v", err)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	// Shape (2,) to (4,) never crosses a padding boundary, so the file
	// grows by exactly the appended payload.
	if after.Size()-before.Size() != 16 {
		t.Fatalf("file grew by %d bytes, want 16", after.Size()-before.Size())
	}
}

func TestRebuildFilePreservesPayload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rebuild.npy")
	if err := Save(path, []int16{1, 2, 3}, []int{3}, RowMajor); err != nil {
		t.Fatalf("save: %v", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()
	disk, hdrSize, err := ReadHeader(f)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}

	layout, err := NewLayout(disk.Fields)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	newHeader := Header{Fields: disk.Fields, Order: disk.Order, Shape: []int{5}}
	src := NewSliceSource([]int16{4, 5})
	if err := rebuildFile(path, f, hdrSize, disk, newHeader, layout, src, 2); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	a, err := Load(path)
	if err != nil {
		t.Fatalf("load rebuilt: %v", err)
	}
	defer func() { _ = a.Close() }()
	got, err := Data[int16](a)
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	want := []int16{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("length: got %d want %d", len(got), len(want))
	}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("element %d: got %v want %v", i, got[i], v)
		}
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory has %d entries after rebuild, want 1", len(entries))
	}
}

func TestWriteRejectsShapeValueMismatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.npy")
	if err := Save(path, []float64{1, 2, 3}, []int{2, 2}, RowMajor); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("got %v, want ErrShapeMismatch", err)
	}
}
