// Package fields implements the column-level stages of the pipeline: the
// field inventory, its aggregation, dictionary-driven header renaming,
// content extraction into the merged result and order number cleaning.
package fields

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

// Inventory column names.
const (
	ColFileName  = "File Name"
	ColFileType  = "File Type"
	ColFieldName = "Field Names"
)

// ExtractFields lists every header label of every CSV and workbook sheet in
// dir and writes the inventory to out with the columns File Name, File Type
// and Field Names. Workbook sheets are named <file>_<sheet>. It returns the
// number of rows written.
func ExtractFields(ctx context.Context, dir, out string, workers int) (int, error) {
	sources, err := loadSources(ctx, dir, workers)
	if err != nil {
		return 0, err
	}

	t := &tabular.Table{Headers: []string{ColFileName, ColFileType, ColFieldName}}
	for _, s := range sources {
		name := s.File
		if s.Sheet != "" {
			name += "_" + s.Sheet
		}
		for _, h := range s.Table.Headers {
			h = strings.TrimSpace(strings.ReplaceAll(h, "\ufeff", ""))
			if h == "" {
				continue
			}
			t.Rows = append(t.Rows, []string{name, s.Kind, h})
		}
	}

	if err := tabular.WriteCSV(out, t, tabular.WriteOptions{BOM: true}); err != nil {
		return 0, err
	}
	return len(t.Rows), nil
}

// Aggregate groups the CSV at in by dimension and, for each group, writes
// the distinct values of array in first-seen order as {a,b,...} together
// with their count. Groups are sorted by key; blank keys are dropped.
// Output columns are dimension, <array>数组 and <array>个数.
func Aggregate(in, dimension, array, out string) (int, error) {
	t, err := tabular.ReadCSV(in)
	if err != nil {
		return 0, err
	}

	idx := tabular.MakeHeaderIndex(t.Headers)
	dimCol, ok1 := idx.Lookup(dimension)
	arrCol, ok2 := idx.Lookup(array)
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("aggregate %s: columns %q and %q must both exist", in, dimension, array)
	}

	type group struct {
		values []string
		seen   map[string]bool
	}
	groups := make(map[string]*group)

	for _, row := range t.Rows {
		key := row[dimCol]
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{seen: make(map[string]bool)}
			groups[key] = g
		}
		if v := row[arrCol]; v != "" && !g.seen[v] {
			g.seen[v] = true
			g.values = append(g.values, v)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	res := &tabular.Table{Headers: []string{dimension, array + "数组", array + "个数"}}
	for _, k := range keys {
		g := groups[k]
		res.Rows = append(res.Rows, []string{
			k,
			"{" + strings.Join(g.values, ",") + "}",
			strconv.Itoa(len(g.values)),
		})
	}

	if err := tabular.WriteCSV(out, res, tabular.WriteOptions{BOM: true}); err != nil {
		return 0, err
	}
	return len(res.Rows), nil
}
