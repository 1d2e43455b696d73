package npz

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/samcharles93/npyio/npy"
)

type point struct {
	X float64
	Y float64
	N int32
}

func writeTestArchive(t *testing.T, path string, method uint16) {
	t.Helper()

	w, err := Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	w.Method = method

	if err := Add(w, "floats", []float64{1.2, 3.4, 5.6, 7.8}, []int{4}, npy.ColumnMajor); err != nil {
		t.Fatalf("add floats: %v", err)
	}
	if err := Add(w, "grid", []int32{1, 2, 3, 4, 5, 6}, []int{2, 3}, npy.RowMajor); err != nil {
		t.Fatalf("add grid: %v", err)
	}
	pts := []point{{1, 2, 3}, {4, 5, 6}}
	if err := AddRecords(w, "points", pts, []int{2}, npy.RowMajor, "x", "y", "n"); err != nil {
		t.Fatalf("add points: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	for _, method := range []uint16{zip.Deflate, zip.Store} {
		path := filepath.Join(t.TempDir(), "test.npz")
		writeTestArchive(t, path, method)

		a, err := ReadFile(path)
		if err != nil {
			t.Fatalf("read archive: %v", err)
		}
		defer func() { _ = a.Close() }()

		if len(a.Arrays) != 3 {
			t.Fatalf("archive has %d arrays, want 3", len(a.Arrays))
		}
		if len(a.Skipped) != 0 {
			t.Fatalf("unexpected skipped entries: %v", a.Skipped)
		}

		floats := a.Arrays["floats"]
		if floats == nil {
			t.Fatalf("missing array 'floats'")
		}
		got, err := npy.Data[float64](floats)
		if err != nil {
			t.Fatalf("floats data: %v", err)
		}
		want := []float64{1.2, 3.4, 5.6, 7.8}
		for i, v := range want {
			if got[i] != v {
				t.Fatalf("floats[%d]: got %v want %v", i, got[i], v)
			}
		}
		if floats.Order() != npy.ColumnMajor {
			t.Fatalf("floats order: got %v", floats.Order())
		}

		pts := a.Arrays["points"]
		if pts == nil {
			t.Fatalf("missing array 'points'")
		}
		xs, err := npy.Column[float64](pts, "x")
		if err != nil {
			t.Fatalf("column x: %v", err)
		}
		wantX := []float64{1, 4}
		i := 0
		for v := range xs {
			if v != wantX[i] {
				t.Fatalf("x[%d]: got %v want %v", i, v, wantX[i])
			}
			i++
		}
	}
}

func TestLoadSingleVariable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.npz")
	writeTestArchive(t, path, zip.Deflate)

	a, err := Load(path, "grid")
	if err != nil {
		t.Fatalf("load grid: %v", err)
	}
	defer func() { _ = a.Close() }()

	if got := a.Shape(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("grid shape: got %v want [2 3]", got)
	}

	if _, err := Load(path, "missing"); !errors.Is(err, npy.ErrNotFound) {
		t.Fatalf("missing variable: got %v, want ErrNotFound", err)
	}
}

func TestForeignEntriesAreSkipped(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mixed.npz")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := Add(w, "vals", []uint8{9, 8, 7}, []int{3}, npy.RowMajor); err != nil {
		t.Fatalf("add vals: %v", err)
	}
	ew, err := w.zw.Create("readme.txt")
	if err != nil {
		t.Fatalf("create foreign entry: %v", err)
	}
	if _, err := ew.Write([]byte("not an array")); err != nil {
		t.Fatalf("write foreign entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	a, err := ReadFile(path, WithLogger(logger))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer func() { _ = a.Close() }()

	if len(a.Arrays) != 1 {
		t.Fatalf("archive has %d arrays, want 1", len(a.Arrays))
	}
	if len(a.Skipped) != 1 || a.Skipped[0] != "readme.txt" {
		t.Fatalf("skipped: got %v want [readme.txt]", a.Skipped)
	}
	if !bytes.Contains(logBuf.Bytes(), []byte("readme.txt")) {
		t.Fatalf("skip was not logged: %q", logBuf.String())
	}
}

func TestStoredEntryBytesMatchPlainFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plain := filepath.Join(dir, "vals.npy")
	vals := []float32{0.5, 1.5, 2.5}
	if err := npy.Save(plain, vals, []int{3}, npy.RowMajor); err != nil {
		t.Fatalf("save plain: %v", err)
	}
	ref, err := npy.Load(plain)
	if err != nil {
		t.Fatalf("load plain: %v", err)
	}
	defer func() { _ = ref.Close() }()

	path := filepath.Join(dir, "vals.npz")
	w, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w.Method = zip.Store
	if err := Add(w, "vals", vals, []int{3}, npy.RowMajor); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := Load(path, "vals")
	if err != nil {
		t.Fatalf("load from archive: %v", err)
	}
	defer func() { _ = got.Close() }()

	if !got.Equal(ref) {
		t.Fatalf("archived array differs from plain file")
	}
}
