// Package tabular holds the text-only table model shared by every pipeline
// stage together with the CSV reading and writing helpers around it.
//
// All values stay strings until a stage explicitly parses them; there is no
// typed schema.
package tabular

import (
	"strings"
)

// Table is an ordered header plus fixed-width rows of raw cell text.
type Table struct {
	Headers []string
	Rows    [][]string
}

// HeaderIndex maps normalized column names to their position.
type HeaderIndex map[string]int

// NormalizeName folds a column label for lookups: trims whitespace, removes
// any stray BOM and lowercases.
func NormalizeName(s string) string {
	s = strings.ReplaceAll(s, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(s))
}

// MakeHeaderIndex creates a HeaderIndex from a header row. When two labels
// normalize to the same key the later one wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[NormalizeName(h)] = i
	}
	return idx
}

// Lookup returns the position of name, matched after normalization.
func (h HeaderIndex) Lookup(name string) (int, bool) {
	i, ok := h[NormalizeName(name)]
	return i, ok
}

// ResolveColumn returns the index of the first of preferred and aliases that
// exists in the table, or -1.
func (t *Table) ResolveColumn(preferred string, aliases []string) int {
	idx := MakeHeaderIndex(t.Headers)
	if i, ok := idx.Lookup(preferred); ok {
		return i
	}
	for _, alias := range aliases {
		if alias == preferred {
			continue
		}
		if i, ok := idx.Lookup(alias); ok {
			return i
		}
	}
	return -1
}

// Column returns a copy of column i.
func (t *Table) Column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// SetColumn overwrites column i with values, which must have len(t.Rows).
func (t *Table) SetColumn(i int, values []string) {
	for r, row := range t.Rows {
		row[i] = values[r]
	}
}

// AddColumn appends a column named name. An existing column of that exact
// name is overwritten instead.
func (t *Table) AddColumn(name string, values []string) {
	for i, h := range t.Headers {
		if h == name {
			t.SetColumn(i, values)
			return
		}
	}
	t.Headers = append(t.Headers, name)
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r], values[r])
	}
}

// Filter keeps only the rows where keep[i] is true.
func (t *Table) Filter(keep []bool) {
	out := t.Rows[:0]
	for i, row := range t.Rows {
		if keep[i] {
			out = append(out, row)
		}
	}
	t.Rows = out
}

// Normalize pads short rows and truncates long ones to the header width.
func (t *Table) Normalize() {
	width := len(t.Headers)
	for i, row := range t.Rows {
		switch {
		case len(row) < width:
			t.Rows[i] = append(row, make([]string, width-len(row))...)
		case len(row) > width:
			t.Rows[i] = row[:width]
		}
	}
}

// CleanCell trims whitespace and unwraps the ="..." formula prefix Excel
// uses to keep long numeric strings as text.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return s
}
