package header

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

var (
	// ErrEmptyFile means the file held no non-blank rows.
	ErrEmptyFile = errors.New("file is empty")

	// ErrHeaderNotFound means no row in the search window qualified.
	ErrHeaderNotFound = errors.New("header row not found")

	// ErrHeaderIsLastRow means the chosen header has no data rows after it.
	// It signals malformed input, not a missing header.
	ErrHeaderIsLastRow = errors.New("header row is the last row")
)

// BuildTable slices rows at headerIdx and labels the data beneath it. Header
// labels and every cell are trimmed.
// Data rows shorter than the header are padded with empty cells, longer rows
// are truncated, so every row has len(Headers) cells.
func BuildTable(rows [][]string, headerIdx int) (*tabular.Table, error) {
	if headerIdx < 0 || headerIdx >= len(rows) {
		return nil, fmt.Errorf("header index %d out of range for %d rows", headerIdx, len(rows))
	}
	if headerIdx >= len(rows)-1 {
		return nil, fmt.Errorf("%w: index %d, file has %d rows", ErrHeaderIsLastRow, headerIdx, len(rows))
	}

	raw := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		raw[i] = strings.TrimSpace(h)
	}
	headers := UniqueHeaders(raw)

	data := rows[headerIdx+1:]
	out := make([][]string, len(data))
	for i, row := range data {
		cells := make([]string, len(headers))
		for j := range cells {
			if j < len(row) {
				cells[j] = strings.TrimSpace(row[j])
			}
		}
		out[i] = cells
	}

	return &tabular.Table{Headers: headers, Rows: out}, nil
}

// UniqueHeaders disambiguates repeated labels by suffixing _1, _2, ... to the
// second and later occurrences. The first occurrence keeps its bare name, and
// a suffix is skipped when another label already uses it.
func UniqueHeaders(headers []string) []string {
	taken := make(map[string]bool, len(headers))
	for _, h := range headers {
		taken[h] = true
	}

	used := make(map[string]bool, len(headers))
	next := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		if !used[h] {
			used[h] = true
			out[i] = h
			continue
		}
		for {
			next[h]++
			name := fmt.Sprintf("%s_%d", h, next[h])
			if !taken[name] && !used[name] {
				used[name] = true
				out[i] = name
				break
			}
		}
	}
	return out
}
