package npy

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// encodeReference produces the full stream bytes for vals through the
// eager write path, as the ground truth for streaming comparisons.
func encodeReference(t *testing.T, vals []float64, shape []int, order MemoryOrder) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, vals, shape, order); err != nil {
		t.Fatalf("reference encode: %v", err)
	}
	return buf.Bytes()
}

func TestStreamReaderMatchesEagerWrite(t *testing.T) {
	t.Parallel()

	vals := []float64{1.2, 3.4, 5.6, 7.8}
	want := encodeReference(t, vals, []int{4}, ColumnMajor)

	h := Header{Fields: []Field{FieldOf[float64]("")}, Order: ColumnMajor, Shape: []int{4}}
	sr, err := NewStreamReader(h, NewSliceSource(vals))
	if err != nil {
		t.Fatalf("new stream reader: %v", err)
	}
	if sr.Size() != int64(len(want)) {
		t.Fatalf("size: got %d want %d", sr.Size(), len(want))
	}
	got, err := io.ReadAll(sr)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("streamed bytes differ from eager write")
	}
}

func TestStreamReaderArbitraryChunkSizes(t *testing.T) {
	t.Parallel()

	vals := []float64{1.2, 3.4, 5.6, 7.8}
	want := encodeReference(t, vals, []int{2, 2}, RowMajor)
	h := Header{Fields: []Field{FieldOf[float64]("")}, Order: RowMajor, Shape: []int{2, 2}}

	// Chunk sizes below, at and above one record stride, plus a huge one.
	for _, chunk := range []int{1, 3, 5, 7, 8, 13, 64, 4096} {
		sr, err := NewStreamReader(h, NewSliceSource(vals))
		if err != nil {
			t.Fatalf("chunk %d: new stream reader: %v", chunk, err)
		}

		var got bytes.Buffer
		p := make([]byte, chunk)
		for {
			n, err := sr.Read(p)
			got.Write(p[:n])
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("chunk %d: read: %v", chunk, err)
			}
			if n == 0 {
				t.Fatalf("chunk %d: zero-byte progress without EOF", chunk)
			}
		}
		if !bytes.Equal(got.Bytes(), want) {
			t.Fatalf("chunk %d: streamed bytes differ from eager write", chunk)
		}
	}
}

func TestStreamReaderZeroLengthRequest(t *testing.T) {
	t.Parallel()

	h := Header{Fields: []Field{FieldOf[int32]("")}, Order: RowMajor, Shape: []int{2}}
	sr, err := NewStreamReader(h, NewSliceSource([]int32{1, 2}))
	if err != nil {
		t.Fatalf("new stream reader: %v", err)
	}

	if n, err := sr.Read(nil); n != 0 || err != nil {
		t.Fatalf("zero-length read: got (%d, %v), want (0, nil)", n, err)
	}
	// A zero-length request must not advance the stream.
	got, err := io.ReadAll(sr)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, []int32{1, 2}, []int{2}, RowMajor); err != nil {
		t.Fatalf("reference encode: %v", err)
	}
	if !bytes.Equal(got, buf.Bytes()) {
		t.Fatalf("stream corrupted by zero-length request")
	}
}

func TestStreamReaderEmptyArray(t *testing.T) {
	t.Parallel()

	h := Header{Fields: []Field{FieldOf[float64]("")}, Order: RowMajor, Shape: []int{0}}
	sr, err := NewStreamReader(h, NewSliceSource[float64](nil))
	if err != nil {
		t.Fatalf("new stream reader: %v", err)
	}
	got, err := io.ReadAll(sr)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	hb, err := EncodeHeader(h)
	if err != nil {
		t.Fatalf("encode header: %v", err)
	}
	if !bytes.Equal(got, hb) {
		t.Fatalf("empty array stream should be header only")
	}
	if n, err := sr.Read(make([]byte, 8)); n != 0 || err != io.EOF {
		t.Fatalf("read past end: got (%d, %v), want (0, EOF)", n, err)
	}
}

func TestStreamReaderShortSource(t *testing.T) {
	t.Parallel()

	h := Header{Fields: []Field{FieldOf[float64]("")}, Order: RowMajor, Shape: []int{4}}
	sr, err := NewStreamReader(h, NewSliceSource([]float64{1, 2}))
	if err != nil {
		t.Fatalf("new stream reader: %v", err)
	}
	_, err = io.ReadAll(sr)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("got %v, want ErrUnexpectedEOF", err)
	}
	// The failure is sticky.
	if _, err2 := sr.Read(make([]byte, 1)); !errors.Is(err2, io.ErrUnexpectedEOF) {
		t.Fatalf("second read after failure: got %v", err2)
	}
}

func TestStreamReaderSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	h := Header{Fields: []Field{FieldOf[int64]("")}, Order: RowMajor, Shape: []int{3}}
	sr, err := NewStreamReader(h, FuncSource(func([]byte) error { return boom }))
	if err != nil {
		t.Fatalf("new stream reader: %v", err)
	}
	if _, err := io.ReadAll(sr); !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped source error", err)
	}
}
