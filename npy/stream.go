package npy

import (
	"fmt"
	"io"
)

// StreamReader bridges an element-at-a-time Source to a chunk-at-a-time
// consumer: it implements io.Reader, producing the encoded header bytes
// followed by exactly NumVals packed records, however small or uneven
// the requested chunk sizes are. An archive writer can therefore drive
// the Source through its own pull loop without the array ever existing
// in memory as a whole.
//
// A StreamReader moves through three states: header bytes, record bytes,
// done. When a request ends inside a record, the remainder of that record
// is carried over and flushed first on the next call; this is the only
// place the reader pulls ahead of what the caller consumed. Reads are
// synchronous and single-threaded.
type StreamReader struct {
	header  []byte
	hoff    int
	src     Source
	stride  int
	numVals int
	written int // records pulled from src so far

	carryBuf []byte
	carry    []byte // unflushed tail of a partially consumed record
	err      error  // sticky failure
}

// NewStreamReader encodes the header for h and prepares a reader pulling
// records from src.
func NewStreamReader(h Header, src Source) (*StreamReader, error) {
	layout, err := NewLayout(h.Fields)
	if err != nil {
		return nil, err
	}
	hb, err := EncodeHeader(h)
	if err != nil {
		return nil, err
	}
	return &StreamReader{
		header:   hb,
		src:      src,
		stride:   layout.Stride(),
		numVals:  h.NumVals(),
		carryBuf: make([]byte, layout.Stride()),
	}, nil
}

// Size returns the total length of the stream in bytes.
func (r *StreamReader) Size() int64 {
	return int64(len(r.header)) + int64(r.numVals)*int64(r.stride)
}

func (r *StreamReader) done() bool {
	return r.hoff == len(r.header) && r.written == r.numVals && len(r.carry) == 0
}

// Read fills p with the next stream bytes. It never writes more than
// len(p) bytes and returns io.EOF once the header and all records have
// been produced. A zero-length request returns (0, nil).
func (r *StreamReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.done() {
		return 0, io.EOF
	}

	n := 0

	// Header bytes first.
	if r.hoff < len(r.header) {
		c := copy(p, r.header[r.hoff:])
		r.hoff += c
		n += c
	}

	// Flush the carried tail of a previously split record.
	if n < len(p) && len(r.carry) > 0 {
		c := copy(p[n:], r.carry)
		r.carry = r.carry[c:]
		n += c
	}

	// Pack whole records straight into p while they fit.
	for len(p)-n >= r.stride && r.written < r.numVals {
		if err := r.pull(p[n : n+r.stride]); err != nil {
			return n, err
		}
		n += r.stride
	}

	// Leftover space smaller than one record: pull one more element,
	// emit what fits and carry the rest to the next call.
	if rem := len(p) - n; rem > 0 && r.written < r.numVals {
		buf := r.carryBuf[:r.stride]
		if err := r.pull(buf); err != nil {
			return n, err
		}
		c := copy(p[n:], buf)
		r.carry = buf[c:]
		n += c
	}

	return n, nil
}

func (r *StreamReader) pull(dst []byte) error {
	err := r.src.Next(dst)
	switch {
	case err == io.EOF:
		r.err = fmt.Errorf("npy: source exhausted after %d of %d records: %w",
			r.written, r.numVals, io.ErrUnexpectedEOF)
		return r.err
	case err != nil:
		r.err = fmt.Errorf("npy: reading record %d: %w", r.written, err)
		return r.err
	}
	r.written++
	return nil
}
