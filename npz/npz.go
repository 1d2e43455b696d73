// Package npz reads and writes NumPy .npz archives: zip containers whose
// entries are independently valid .npy streams, one per named array.
package npz

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/samcharles93/npyio/npy"
)

const entrySuffix = ".npy"

// Writer appends named arrays to a .npz archive. Each array is streamed
// through a pull reader, so the packed payload never exists in memory as
// a whole. Not safe for concurrent use.
type Writer struct {
	zw *zip.Writer
	f  *os.File // owned when constructed by Create

	// Method selects the compression method for subsequent entries.
	// Defaults to deflate; set to zip.Store for seekable uncompressed
	// entries.
	Method uint16
}

// NewWriter writes a .npz archive to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w), Method: zip.Deflate}
}

// Create creates or truncates the archive file at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("npz: %w", err)
	}
	w := NewWriter(f)
	w.f = f
	return w, nil
}

// AddArray opens a new archive entry named "<name>.npy" and drives src
// through a streaming reader until the entry is complete.
func (w *Writer) AddArray(name string, h npy.Header, src npy.Source) error {
	sr, err := npy.NewStreamReader(h, src)
	if err != nil {
		return err
	}
	ew, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   name + entrySuffix,
		Method: w.Method,
	})
	if err != nil {
		return fmt.Errorf("npz: creating entry %q: %w", name, err)
	}
	if _, err := io.Copy(ew, sr); err != nil {
		return fmt.Errorf("npz: writing entry %q: %w", name, err)
	}
	return nil
}

// Add streams vals as a plain array entry.
func Add[T npy.Scalar](w *Writer, name string, vals []T, shape []int, order npy.MemoryOrder) error {
	h := npy.Header{Fields: []npy.Field{npy.FieldOf[T]("")}, Order: order, Shape: shape}
	if len(vals) != h.NumVals() {
		return fmt.Errorf("%w: %d values for shape %v", npy.ErrShapeMismatch, len(vals), shape)
	}
	return w.AddArray(name, h, npy.NewSliceSource(vals))
}

// AddRecords streams recs as a structured array entry. Field descriptors
// come from the exported scalar fields of T; labels, if given, rename
// them.
func AddRecords[T any](w *Writer, name string, recs []T, shape []int, order npy.MemoryOrder, labels ...string) error {
	src, err := npy.NewStructSource(recs, labels...)
	if err != nil {
		return err
	}
	h := npy.Header{Fields: src.Fields(), Order: order, Shape: shape}
	if len(recs) != h.NumVals() {
		return fmt.Errorf("%w: %d records for shape %v", npy.ErrShapeMismatch, len(recs), shape)
	}
	return w.AddArray(name, h, src)
}

// Close finalizes the archive's central directory and closes the file if
// the Writer owns one.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		if w.f != nil {
			_ = w.f.Close()
		}
		return fmt.Errorf("npz: finalizing archive: %w", err)
	}
	if w.f != nil {
		if err := w.f.Close(); err != nil {
			return fmt.Errorf("npz: %w", err)
		}
	}
	return nil
}

// Archive holds the arrays of one .npz file, keyed by variable name
// (entry name minus the .npy suffix). Entries that are not .npy streams
// are not silently dropped: their names are collected in Skipped.
type Archive struct {
	Arrays  map[string]*npy.Array
	Skipped []string
}

// Close releases every array in the archive.
func (a *Archive) Close() error {
	var first error
	for _, arr := range a.Arrays {
		if err := arr.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type config struct {
	logger *slog.Logger
}

// Option configures archive reading.
type Option func(*config)

// WithLogger logs a warning for every skipped non-.npy entry, in
// addition to collecting it in Archive.Skipped.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// ReadFile loads every array of the .npz file at path.
func ReadFile(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("npz: %w", err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("npz: %w", err)
	}
	a, err := Read(f, st.Size(), opts...)
	if err != nil {
		return nil, fmt.Errorf("npz: reading %s: %w", path, err)
	}
	return a, nil
}

// Read loads every array of a .npz archive from r.
func Read(r io.ReaderAt, size int64, opts ...Option) (*Archive, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("npz: opening archive: %w", err)
	}

	a := &Archive{Arrays: make(map[string]*npy.Array, len(zr.File))}
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, entrySuffix) {
			a.Skipped = append(a.Skipped, f.Name)
			if cfg.logger != nil {
				cfg.logger.Warn("skipping archive entry without .npy suffix", "entry", f.Name)
			}
			continue
		}
		arr, err := readEntry(f, r)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("entry %q: %w", f.Name, err)
		}
		a.Arrays[strings.TrimSuffix(f.Name, entrySuffix)] = arr
	}
	return a, nil
}

// Load reads a single named array from the .npz file at path.
func Load(path, name string) (*npy.Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("npz: %w", err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("npz: %w", err)
	}
	zr, err := zip.NewReader(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("npz: opening archive: %w", err)
	}

	want := name + entrySuffix
	for _, zf := range zr.File {
		if zf.Name != want {
			continue
		}
		arr, err := readEntry(zf, f)
		if err != nil {
			return nil, fmt.Errorf("npz: entry %q: %w", zf.Name, err)
		}
		return arr, nil
	}
	return nil, fmt.Errorf("%w: variable %q in %s", npy.ErrNotFound, name, path)
}

// readEntry decodes one .npy entry. Stored (uncompressed) entries are
// read through a section reader straight off the underlying source,
// bypassing the decompression layer; everything else streams through the
// entry reader.
func readEntry(f *zip.File, ra io.ReaderAt) (*npy.Array, error) {
	if f.Method == zip.Store && ra != nil {
		if off, err := f.DataOffset(); err == nil {
			sr := io.NewSectionReader(ra, off, int64(f.UncompressedSize64))
			return npy.Read(sr)
		}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return npy.Read(rc)
}
