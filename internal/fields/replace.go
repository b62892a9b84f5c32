package fields

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

// ErrBadDictionary reports a dictionary sheet without the required columns.
var ErrBadDictionary = errors.New("dictionary needs old_field and new_field columns")

// Mapping renames OldField to NewField. Lower Priority is tried first among
// mappings for the same NewField.
type Mapping struct {
	OldField string
	NewField string
	Priority float64
}

// Dictionary is an ordered list of mappings sorted by (NewField, Priority).
type Dictionary []Mapping

// LoadDictionary reads mappings from the named sheet of a workbook with
// the columns old_field, new_field and priority. A missing or unparsable
// priority sorts last.
func LoadDictionary(path, sheet string) (Dictionary, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read dictionary sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrBadDictionary
	}

	t := &tabular.Table{Headers: rows[0], Rows: rows[1:]}
	t.Normalize()
	return NewDictionary(t)
}

// NewDictionary builds a Dictionary from a table with old_field, new_field
// and optional priority columns.
func NewDictionary(t *tabular.Table) (Dictionary, error) {
	idx := tabular.MakeHeaderIndex(t.Headers)
	oldCol, ok1 := idx.Lookup("old_field")
	newCol, ok2 := idx.Lookup("new_field")
	if !ok1 || !ok2 {
		return nil, ErrBadDictionary
	}
	prioCol, hasPrio := idx.Lookup("priority")

	var d Dictionary
	for _, row := range t.Rows {
		m := Mapping{
			OldField: strings.TrimSpace(row[oldCol]),
			NewField: strings.TrimSpace(row[newCol]),
			Priority: math.Inf(1),
		}
		if m.OldField == "" || m.NewField == "" {
			continue
		}
		if hasPrio {
			if p, err := strconv.ParseFloat(strings.TrimSpace(row[prioCol]), 64); err == nil {
				m.Priority = p
			}
		}
		d = append(d, m)
	}

	slices.SortStableFunc(d, func(a, b Mapping) int {
		if c := cmp.Compare(a.NewField, b.NewField); c != 0 {
			return c
		}
		return cmp.Compare(a.Priority, b.Priority)
	})
	return d, nil
}

// Rename applies the dictionary to headers in place. For each new field the
// first old field, by priority, present among the headers is renamed; the
// others are left alone. It returns the number of renamed headers.
func (d Dictionary) Rename(headers []string) int {
	renamed := 0
	for i := 0; i < len(d); {
		j := i
		for j < len(d) && d[j].NewField == d[i].NewField {
			j++
		}
		for _, m := range d[i:j] {
			if k := slices.Index(headers, m.OldField); k >= 0 {
				headers[k] = m.NewField
				renamed++
				break
			}
		}
		i = j
	}
	return renamed
}

// ReplaceFields copies every CSV and workbook in inDir to outDir with
// headers renamed by d. Empty CSVs and empty sheets are skipped. outDir is
// created if needed and never cleared.
func ReplaceFields(d Dictionary, inDir, outDir string) (int, error) {
	files, err := tabular.ListFiles(inDir, ".csv", ".xlsx")
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", inDir, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", outDir, err)
	}

	written := 0
	for _, path := range files {
		name := filepath.Base(path)
		out := filepath.Join(outDir, name)

		var err error
		var ok bool
		if strings.EqualFold(filepath.Ext(name), ".xlsx") {
			ok, err = replaceWorkbook(d, path, out)
		} else {
			ok, err = replaceCSV(d, path, out)
		}
		if err != nil {
			return written, err
		}
		if !ok {
			slog.Info("field replace: skipped empty file", "file", name)
			continue
		}
		written++
	}
	return written, nil
}

func replaceCSV(d Dictionary, path, out string) (bool, error) {
	srcs, err := readCSVSource(path)
	if err != nil {
		return false, err
	}
	if len(srcs) == 0 {
		return false, nil
	}

	t := srcs[0].Table
	d.Rename(t.Headers)
	return true, tabular.WriteCSV(out, t, tabular.WriteOptions{BOM: true})
}

func replaceWorkbook(d Dictionary, path, out string) (bool, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return false, fmt.Errorf("read %s/%s: %w", filepath.Base(path), sheet, err)
		}
		if len(rows) == 0 {
			slog.Info("field replace: skipped empty sheet", "file", filepath.Base(path), "sheet", sheet)
			continue
		}

		headers := slices.Clone(rows[0])
		if d.Rename(headers) == 0 {
			continue
		}
		if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
			return false, fmt.Errorf("write header %s/%s: %w", filepath.Base(path), sheet, err)
		}
	}

	if err := f.SaveAs(out); err != nil {
		return false, fmt.Errorf("save %s: %w", filepath.Base(out), err)
	}
	return true, nil
}
