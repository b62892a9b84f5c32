package tabular

// streaming.go provides the reader wrappers used when loading CSV files that
// this pipeline wrote itself (always UTF-8, usually with a BOM so that Excel
// opens them correctly).
//
//   - BOMSkippingReader: removes a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - UTF8Sanitizer: replaces invalid UTF-8 sequences with U+FFFD
//
// Raw exports of unknown encoding do not go through here; they are decoded by
// the header package's fallback list first.

import (
	"io"
	"unicode/utf8"
)

// BOM is the UTF-8 byte order mark.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	buf        [3]byte
	pending    []byte
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n == 3 && r.buf[0] == BOM[0] && r.buf[1] == BOM[1] && r.buf[2] == BOM[2] {
			r.pending = nil
		} else {
			r.pending = r.buf[:n]
		}
		if err == io.EOF && len(r.pending) == 0 {
			return 0, io.EOF
		}
	}

	if len(r.pending) > 0 {
		copied := copy(p, r.pending)
		r.pending = r.pending[copied:]
		return copied, nil
	}

	return r.reader.Read(p)
}

// UTF8Sanitizer wraps an io.Reader and replaces invalid UTF-8 sequences with
// the Unicode replacement character on the fly, holding back a trailing
// partial rune until the next read completes it.
type UTF8Sanitizer struct {
	reader  io.Reader
	pending []byte
	out     []byte
	eof     bool
}

// NewUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{reader: r}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	for len(s.out) == 0 {
		if s.eof {
			return 0, io.EOF
		}
		buf := make([]byte, max(len(p), 512))
		n, err := s.reader.Read(buf)
		data := append(s.pending, buf[:n]...)
		s.pending = nil
		if err == io.EOF {
			s.eof = true
		} else if err != nil {
			return 0, err
		}

		keep := 0
		if !s.eof {
			keep = incompleteTrailingBytes(data)
		}
		s.out = sanitize(data[:len(data)-keep])
		if keep > 0 {
			s.pending = append([]byte(nil), data[len(data)-keep:]...)
		}
	}

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func sanitize(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	out := make([]byte, 0, len(data)+8)
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			out = utf8.AppendRune(out, utf8.RuneError)
		} else {
			out = append(out, data[:size]...)
		}
		data = data[size:]
	}
	return out
}

// incompleteTrailingBytes returns how many bytes at the end of data form the
// start of a multi-byte rune that has not been fully read yet.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		b := data[len(data)-i]
		if b < utf8.RuneSelf {
			return 0
		}
		if utf8.RuneStart(b) {
			if utf8.FullRune(data[len(data)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}
