package fields

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

// MergeFile is the merged extraction result.
const MergeFile = "merge.csv"

// SourceColumn records where each merged row came from.
const SourceColumn = "source"

// ContentOptions controls ExtractContent.
type ContentOptions struct {
	Columns []string

	// Merge writes one merge.csv with a source column instead of one
	// <stem>_new.csv per input.
	Merge bool

	// ClearOutput removes the files, not folders, already in the output
	// directory.
	ClearOutput bool

	Workers int
}

// ExtractContent pulls the requested columns out of every CSV and workbook
// sheet in inDir. Column lookup ignores case, surrounding whitespace and a
// BOM; columns a source lacks are filled with empty strings. Output columns
// carry the requested names. It returns the number of data rows written.
func ExtractContent(ctx context.Context, inDir, outDir string, opts ContentOptions) (int, error) {
	if len(opts.Columns) == 0 {
		return 0, fmt.Errorf("extract content: no columns requested")
	}
	info, err := os.Stat(inDir)
	if err != nil {
		return 0, fmt.Errorf("extract content: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("extract content: %s is not a directory", inDir)
	}

	if err := prepareOutput(outDir, opts.ClearOutput); err != nil {
		return 0, err
	}

	sources, err := loadSources(ctx, inDir, opts.Workers)
	if err != nil {
		return 0, err
	}

	headers := append([]string(nil), opts.Columns...)
	if opts.Merge {
		headers = append(headers, SourceColumn)
	}
	merged := &tabular.Table{Headers: headers}
	rows := 0

	for _, s := range sources {
		picked := pick(s.Table, opts.Columns)
		rows += len(picked.Rows)

		if !opts.Merge {
			name := strings.TrimSuffix(s.File, filepath.Ext(s.File))
			if s.Sheet != "" {
				name += "_" + s.Sheet
			}
			out := filepath.Join(outDir, name+"_new.csv")
			if err := tabular.WriteCSV(out, picked, tabular.WriteOptions{BOM: true}); err != nil {
				return rows, err
			}
			continue
		}

		label := s.File
		if s.Sheet != "" {
			label += "+" + s.Sheet
		}
		for _, row := range picked.Rows {
			merged.Rows = append(merged.Rows, append(row, label))
		}
	}

	if opts.Merge {
		if err := tabular.WriteCSV(filepath.Join(outDir, MergeFile), merged, tabular.WriteOptions{BOM: true}); err != nil {
			return rows, err
		}
	}
	return rows, nil
}

// pick projects t onto columns, in the requested order.
func pick(t *tabular.Table, columns []string) *tabular.Table {
	idx := tabular.MakeHeaderIndex(t.Headers)
	pos := make([]int, len(columns))
	for i, c := range columns {
		p, ok := idx.Lookup(c)
		if !ok {
			p = -1
		}
		pos[i] = p
	}

	out := &tabular.Table{Headers: append([]string(nil), columns...), Rows: make([][]string, 0, len(t.Rows))}
	for _, row := range t.Rows {
		r := make([]string, len(columns), len(columns)+1)
		for i, p := range pos {
			if p >= 0 && p < len(row) {
				r[i] = row[p]
			}
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

func prepareOutput(dir string, clear bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if !clear {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
	}
	return nil
}

// SplitColumns splits a user-supplied column list on ASCII and full-width
// commas and semicolons, dropping blanks.
func SplitColumns(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '，' || r == ';' || r == '；'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
