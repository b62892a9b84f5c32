package tabular

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadCSV loads a UTF-8 CSV file with a header row. A leading BOM is skipped
// and invalid byte sequences are replaced, so a damaged file still loads.
// Rows are normalized to the header width. An empty file yields a Table with
// no headers.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Parse reads a CSV document with a header row from r.
func Parse(r io.Reader) (*Table, error) {
	records, err := ParseRecords(NewUTF8Sanitizer(NewBOMSkippingReader(r)))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	t := &Table{Headers: records[0], Rows: records[1:]}
	t.Normalize()
	return t, nil
}

// ParseRecords reads every record from r. Ragged rows and stray quotes are
// tolerated because spreadsheet exports rarely follow RFC 4180 strictly.
func ParseRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

// WriteOptions controls WriteCSV.
type WriteOptions struct {
	// BOM prefixes the file with a UTF-8 byte order mark.
	BOM bool
}

// WriteCSV writes the table to path, creating parent directories.
func WriteCSV(path string, t *Table, opts WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}

	if err := Write(f, t, opts); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// Write encodes the table as CSV to w.
func Write(w io.Writer, t *Table, opts WriteOptions) error {
	bw := bufio.NewWriter(w)
	if opts.BOM {
		if _, err := bw.Write(BOM); err != nil {
			return err
		}
	}

	if len(t.Headers) == 0 && len(t.Rows) == 0 {
		return bw.Flush()
	}

	cw := csv.NewWriter(bw)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return bw.Flush()
}

// ListFiles returns the regular files in dir whose extension is one of exts
// (case-insensitive), sorted by name.
func ListFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				out = append(out, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	return out, nil
}
