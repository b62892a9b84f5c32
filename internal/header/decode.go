package header

// decode.go resolves the character encoding of a raw CSV export.
//
// Exports come from Windows tools (GBK/GB18030), web consoles (UTF-8, often
// with a BOM) and the occasional Latin-1 system. The caller supplies an
// ordered fallback list; the first encoding that decodes the whole file
// strictly wins.

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

// DefaultEncodings is the fallback order used when none is configured.
var DefaultEncodings = []string{
	"utf-8",
	"utf-8-sig",
	"gbk",
	"gb18030",
	"gb2312",
	"latin1",
	"iso-8859-1",
}

// DecodeError reports that no encoding in the fallback list could decode a
// file. It is fatal for that file only.
type DecodeError struct {
	File      string
	Attempted []string
	Causes    map[string]error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s, tried encodings: [%s]", e.File, strings.Join(e.Attempted, ", "))
}

// lookupEncoding maps a configured name to a decoder. utf-8 variants return
// nil and are validated directly.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "utf-8", "utf8", "utf-8-sig", "utf8-sig":
		return nil, nil
	case "gbk", "cp936":
		return simplifiedchinese.GBK, nil
	case "gb18030":
		return simplifiedchinese.GB18030, nil
	case "gb2312", "euc-cn":
		// GBK is a strict superset of EUC-CN GB2312.
		return simplifiedchinese.GBK, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
	return enc, nil
}

// decodeStrict decodes data with the named encoding and fails instead of
// substituting replacement characters.
func decodeStrict(data []byte, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}

	if enc == nil {
		data = bytes.TrimPrefix(data, tabular.BOM)
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid utf-8 sequence")
		}
		return string(data), nil
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}

	// x/text decoders substitute U+FFFD for undecodable input instead of
	// failing, so a lossless round trip is the strictness check.
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		back, err := enc.NewEncoder().Bytes(decoded)
		if err != nil || !bytes.Equal(back, data) {
			return "", fmt.Errorf("undecodable byte sequence")
		}
	}
	return string(decoded), nil
}

// DecodeRows decodes data with the first encoding in encodings that succeeds,
// parses it as CSV and drops rows whose cells are all blank. It returns the
// rows and the encoding name that worked.
func DecodeRows(name string, data []byte, encodings []string) ([][]string, string, error) {
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}

	causes := make(map[string]error, len(encodings))
	for _, enc := range encodings {
		text, err := decodeStrict(data, enc)
		if err != nil {
			causes[enc] = err
			continue
		}

		records, err := tabular.ParseRecords(strings.NewReader(text))
		if err != nil {
			return nil, enc, fmt.Errorf("parse %s as %s: %w", name, enc, err)
		}
		return dropBlankRows(records), enc, nil
	}

	return nil, "", &DecodeError{File: name, Attempted: encodings, Causes: causes}
}

func dropBlankRows(records [][]string) [][]string {
	out := records[:0]
	for _, row := range records {
		if countNonEmpty(row) > 0 {
			out = append(out, row)
		}
	}
	return out
}
