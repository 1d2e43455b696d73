package npy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// EncodeHeader serializes h into the exact byte layout NumPy's writer
// produces: the 10-byte preamble followed by the dictionary text, padded
// with spaces so that the total length is a multiple of 16 and terminated
// by a newline.
func EncodeHeader(h Header) ([]byte, error) {
	return encodeHeaderPadded(h, 0)
}

// encodeHeaderPadded is EncodeHeader with a minimum total size. Extra
// padding (in whole 16-byte blocks) is added until the encoded header is
// at least minSize bytes long. Append mode uses this to regrow a header
// in place without moving the payload.
func encodeHeaderPadded(h Header, minSize int) ([]byte, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}

	var dict bytes.Buffer
	dict.WriteString("{'descr': ")
	writeDescr(&dict, h.Fields)
	dict.WriteString(", 'fortran_order': ")
	if h.Order == ColumnMajor {
		dict.WriteString("True")
	} else {
		dict.WriteString("False")
	}
	dict.WriteString(", 'shape': (")
	for i, d := range h.Shape {
		if i > 0 {
			dict.WriteString(", ")
		}
		dict.WriteString(strconv.Itoa(d))
	}
	if len(h.Shape) == 1 {
		dict.WriteByte(',')
	}
	dict.WriteString("), }")

	// Pad with spaces so that preamble+dict is a multiple of 16, then
	// replace the final pad byte with the terminating newline.
	pad := headerAlign - (preambleSize+dict.Len())%headerAlign
	for preambleSize+dict.Len()+pad < minSize {
		pad += headerAlign
	}
	for range pad - 1 {
		dict.WriteByte(' ')
	}
	dict.WriteByte('\n')

	if dict.Len() > 0xffff {
		return nil, fmt.Errorf("%w: dictionary too large (%d bytes)", ErrFormat, dict.Len())
	}

	out := make([]byte, 0, preambleSize+dict.Len())
	out = append(out, MagicNPY...)
	out = append(out, VersionMajor, VersionMinor)
	out = binary.LittleEndian.AppendUint16(out, uint16(dict.Len()))
	out = append(out, dict.Bytes()...)
	return out, nil
}

// writeDescr emits the 'descr' value: a plain quoted descriptor for a
// single unlabeled field, a list of (label, descriptor) tuples otherwise.
// Only little-endian descriptors are ever produced.
func writeDescr(dict *bytes.Buffer, fields []Field) {
	if len(fields) == 1 && fields[0].Label == "" {
		f := fields[0]
		fmt.Fprintf(dict, "'<%c%d'", f.Tag, f.Size)
		return
	}
	dict.WriteByte('[')
	for i, f := range fields {
		if i > 0 {
			dict.WriteString(", ")
		}
		fmt.Fprintf(dict, "('%s', '<%c%d')", f.Label, f.Tag, f.Size)
	}
	if len(fields) == 1 {
		dict.WriteByte(',')
	}
	dict.WriteByte(']')
}

// ReadHeader reads and decodes one header from r. It returns the header
// and the total number of bytes consumed (preamble plus dictionary), which
// is also the byte offset of the payload.
func ReadHeader(r io.Reader) (Header, int, error) {
	var preamble [preambleSize]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return Header{}, 0, fmt.Errorf("npy: reading preamble: %w", err)
	}
	if string(preamble[:6]) != MagicNPY {
		return Header{}, 0, fmt.Errorf("%w: magic string not found", ErrFormat)
	}
	if preamble[6] != VersionMajor || preamble[7] != VersionMinor {
		return Header{}, 0, fmt.Errorf("%w: unsupported format version %d.%d",
			ErrFormat, preamble[6], preamble[7])
	}
	dictLen := int(binary.LittleEndian.Uint16(preamble[8:10]))
	if dictLen == 0 {
		return Header{}, 0, fmt.Errorf("%w: zero-length dictionary", ErrFormat)
	}

	dict := make([]byte, dictLen)
	if _, err := io.ReadFull(r, dict); err != nil {
		return Header{}, 0, fmt.Errorf("npy: reading dictionary: %w", err)
	}

	h, err := decodeDict(dict)
	if err != nil {
		return Header{}, 0, err
	}
	return h, preambleSize + dictLen, nil
}

// DecodeHeader decodes a complete header from the front of buf. See
// ReadHeader.
func DecodeHeader(buf []byte) (Header, int, error) {
	return ReadHeader(bytes.NewReader(buf))
}

// decodeDict parses the dictionary text with a hand-written scanner for
// the fixed grammar: {'descr': ..., 'fortran_order': ..., 'shape': ...}.
// Keys may appear in any order; each must appear exactly once.
func decodeDict(text []byte) (Header, error) {
	if len(text) == 0 || text[len(text)-1] != '\n' {
		return Header{}, fmt.Errorf("%w: dictionary missing terminating newline", ErrFormat)
	}
	if text[0] != '{' {
		return Header{}, fmt.Errorf("%w: dictionary does not start with '{'", ErrFormat)
	}

	s := &dictScanner{text: text, pos: 1}

	var (
		h                               Header
		haveDescr, haveOrder, haveShape bool
	)
	for {
		s.skipSpaces()
		if s.peek() == '}' {
			s.pos++
			break
		}
		key, err := s.quoted()
		if err != nil {
			return Header{}, err
		}
		s.skipSpaces()
		if err := s.expect(':'); err != nil {
			return Header{}, err
		}
		s.skipSpaces()

		switch key {
		case "descr":
			if haveDescr {
				return Header{}, s.errorf("duplicate key 'descr'")
			}
			h.Fields, err = s.descr()
			haveDescr = true
		case "fortran_order":
			if haveOrder {
				return Header{}, s.errorf("duplicate key 'fortran_order'")
			}
			h.Order, err = s.order()
			haveOrder = true
		case "shape":
			if haveShape {
				return Header{}, s.errorf("duplicate key 'shape'")
			}
			h.Shape, err = s.shape()
			haveShape = true
		default:
			return Header{}, s.errorf("unexpected key %q", key)
		}
		if err != nil {
			return Header{}, err
		}

		s.skipSpaces()
		if s.peek() == ',' {
			s.pos++
		}
	}

	// Only space padding and the final newline may follow the dictionary.
	for ; s.pos < len(s.text)-1; s.pos++ {
		if s.text[s.pos] != ' ' {
			return Header{}, s.errorf("trailing garbage after dictionary")
		}
	}

	if !haveDescr {
		return Header{}, fmt.Errorf("%w: missing key 'descr'", ErrFormat)
	}
	if !haveOrder {
		return Header{}, fmt.Errorf("%w: missing key 'fortran_order'", ErrFormat)
	}
	if !haveShape {
		return Header{}, fmt.Errorf("%w: missing key 'shape'", ErrFormat)
	}
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// dictScanner walks the dictionary text byte by byte. Errors carry the
// exact offset where scanning failed.
type dictScanner struct {
	text []byte
	pos  int
}

func (s *dictScanner) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s at offset %d", ErrFormat, msg, s.pos)
}

func (s *dictScanner) peek() byte {
	if s.pos >= len(s.text) {
		return 0
	}
	return s.text[s.pos]
}

func (s *dictScanner) skipSpaces() {
	for s.pos < len(s.text) && s.text[s.pos] == ' ' {
		s.pos++
	}
}

func (s *dictScanner) expect(b byte) error {
	if s.peek() != b {
		return s.errorf("expected %q, found %q", b, s.peek())
	}
	s.pos++
	return nil
}

// quoted reads a single-quoted string. The grammar has no escapes.
func (s *dictScanner) quoted() (string, error) {
	if err := s.expect('\''); err != nil {
		return "", err
	}
	start := s.pos
	for s.pos < len(s.text) && s.text[s.pos] != '\'' {
		s.pos++
	}
	if s.pos >= len(s.text) {
		return "", s.errorf("unterminated string")
	}
	out := string(s.text[start:s.pos])
	s.pos++
	return out, nil
}

func (s *dictScanner) uint() (int, error) {
	start := s.pos
	for s.pos < len(s.text) && s.text[s.pos] >= '0' && s.text[s.pos] <= '9' {
		s.pos++
	}
	if s.pos == start {
		return 0, s.errorf("expected integer")
	}
	n, err := strconv.Atoi(string(s.text[start:s.pos]))
	if err != nil {
		return 0, s.errorf("bad integer: %v", err)
	}
	return n, nil
}

// descr parses either a plain quoted descriptor or a bracketed list of
// ('label', 'descriptor') tuples.
func (s *dictScanner) descr() ([]Field, error) {
	switch s.peek() {
	case '\'':
		d, err := s.quoted()
		if err != nil {
			return nil, err
		}
		f, err := s.parseTypeDescr(d)
		if err != nil {
			return nil, err
		}
		return []Field{f}, nil
	case '[':
		s.pos++
		var fields []Field
		for {
			s.skipSpaces()
			if s.peek() == ']' {
				s.pos++
				break
			}
			f, err := s.fieldTuple()
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			s.skipSpaces()
			if s.peek() == ',' {
				s.pos++
			}
		}
		if len(fields) == 0 {
			return nil, s.errorf("empty field list in 'descr'")
		}
		return fields, nil
	default:
		return nil, s.errorf("malformed 'descr'")
	}
}

func (s *dictScanner) fieldTuple() (Field, error) {
	if err := s.expect('('); err != nil {
		return Field{}, err
	}
	s.skipSpaces()
	label, err := s.quoted()
	if err != nil {
		return Field{}, err
	}
	s.skipSpaces()
	if err := s.expect(','); err != nil {
		return Field{}, err
	}
	s.skipSpaces()
	d, err := s.quoted()
	if err != nil {
		return Field{}, err
	}
	s.skipSpaces()
	if err := s.expect(')'); err != nil {
		return Field{}, err
	}
	f, err := s.parseTypeDescr(d)
	if err != nil {
		return Field{}, err
	}
	f.Label = label
	return f, nil
}

// parseTypeDescr decodes a '<endianness><tag><digits>' descriptor. Any
// big-endian marker is rejected; there is no byte-swapping support.
func (s *dictScanner) parseTypeDescr(d string) (Field, error) {
	if len(d) < 3 {
		return Field{}, s.errorf("type descriptor %q too short", d)
	}
	switch d[0] {
	case '<', '|':
	case '>':
		return Field{}, s.errorf("data stored in big-endian format (not supported)")
	default:
		return Field{}, s.errorf("unknown endianness marker %q", d[0])
	}
	size, err := strconv.Atoi(d[2:])
	if err != nil {
		return Field{}, s.errorf("bad size in type descriptor %q", d)
	}
	f := Field{Tag: d[1], Size: size}
	if err := validateField(f); err != nil {
		return Field{}, err
	}
	return f, nil
}

func (s *dictScanner) order() (MemoryOrder, error) {
	switch {
	case bytes.HasPrefix(s.text[s.pos:], []byte("True")):
		s.pos += len("True")
		return ColumnMajor, nil
	case bytes.HasPrefix(s.text[s.pos:], []byte("False")):
		s.pos += len("False")
		return RowMajor, nil
	default:
		return 0, s.errorf("'fortran_order' must be True or False")
	}
}

func (s *dictScanner) shape() ([]int, error) {
	if err := s.expect('('); err != nil {
		return nil, err
	}
	dims := []int{}
	for {
		s.skipSpaces()
		if s.peek() == ')' {
			s.pos++
			return dims, nil
		}
		d, err := s.uint()
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
		s.skipSpaces()
		switch s.peek() {
		case ',':
			s.pos++
		case ')':
		default:
			return nil, s.errorf("malformed 'shape'")
		}
	}
}
