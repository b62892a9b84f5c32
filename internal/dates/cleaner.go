package dates

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

// FailurePolicy decides what happens to a value no rule could resolve.
type FailurePolicy string

const (
	KeepOriginal FailurePolicy = "keep_original"
	SetNull      FailurePolicy = "set_null"
	DropRow      FailurePolicy = "drop_row"
)

// OutputMode decides where cleaned values are written.
type OutputMode string

const (
	Replace   OutputMode = "replace"
	AddColumn OutputMode = "add_column"
)

// FieldConfig names a date column. Aliases are tried in order when Name is
// absent. Fields without a time component are rendered as YYYY-MM-DD.
type FieldConfig struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	HasTime bool     `yaml:"has_time"`
}

// Options controls the disposition of cleaned values.
type Options struct {
	OnParseFailure FailurePolicy `yaml:"on_parse_failure"`
	OutputMode     OutputMode    `yaml:"output_mode"`
	LogDetails     bool          `yaml:"log_details"`
}

// Validate reports unknown policy or mode values.
func (o Options) Validate() error {
	switch o.OnParseFailure {
	case KeepOriginal, SetNull, DropRow, "":
	default:
		return fmt.Errorf("unknown on_parse_failure %q", o.OnParseFailure)
	}
	switch o.OutputMode {
	case Replace, AddColumn, "":
	default:
		return fmt.Errorf("unknown output_mode %q", o.OutputMode)
	}
	return nil
}

// Cleaner applies a Normalizer to the configured date columns of CSV files.
type Cleaner struct {
	normalizer *Normalizer
	fields     []FieldConfig
	opts       Options
}

// NewCleaner compiles rules and validates opts. An empty rules list uses
// DefaultRules.
func NewCleaner(rules []Rule, fields []FieldConfig, opts Options) (*Cleaner, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.OnParseFailure == "" {
		opts.OnParseFailure = KeepOriginal
	}
	if opts.OutputMode == "" {
		opts.OutputMode = Replace
	}

	n, err := NewNormalizer(rules)
	if err != nil {
		return nil, fmt.Errorf("compile date rules: %w", err)
	}
	return &Cleaner{normalizer: n, fields: fields, opts: opts}, nil
}

// ColumnStats counts outcomes for one cleaned column.
type ColumnStats struct {
	Field    string
	Column   string
	Resolved int
	Failed   int
}

// CleanStats summarizes one cleaned table.
type CleanStats struct {
	Rows        int
	DroppedRows int
	Columns     []ColumnStats
	Missing     []string
}

// CleanTable cleans t in place. When columns is non-empty only fields whose
// name or an alias is listed are cleaned. Empty cells are left empty and never
// count as failures.
func (c *Cleaner) CleanTable(t *tabular.Table, columns []string) CleanStats {
	stats := CleanStats{Rows: len(t.Rows)}
	failedRow := make([]bool, len(t.Rows))

	for _, f := range c.selectFields(columns) {
		col := t.ResolveColumn(f.Name, f.Aliases)
		if col < 0 {
			stats.Missing = append(stats.Missing, f.Name)
			continue
		}

		raw := t.Column(col)
		results := c.normalizer.Normalize(raw)
		out := make([]string, len(raw))
		cs := ColumnStats{Field: f.Name, Column: t.Headers[col]}

		for i, res := range results {
			switch {
			case res.Resolved:
				cs.Resolved++
				out[i] = res.Value
				if !f.HasTime {
					out[i] = res.Value[:len("2006-01-02")]
				}
			case PreClean(raw[i]) == "":
				out[i] = ""
			default:
				cs.Failed++
				failedRow[i] = true
				if c.opts.OnParseFailure == KeepOriginal {
					out[i] = raw[i]
				}
			}
		}

		if c.opts.OutputMode == AddColumn {
			t.AddColumn(t.Headers[col]+"_cleaned", out)
		} else {
			t.SetColumn(col, out)
		}
		stats.Columns = append(stats.Columns, cs)
	}

	if c.opts.OnParseFailure == DropRow {
		keep := make([]bool, len(failedRow))
		for i, failed := range failedRow {
			keep[i] = !failed
			if failed {
				stats.DroppedRows++
			}
		}
		t.Filter(keep)
	}

	return stats
}

func (c *Cleaner) selectFields(columns []string) []FieldConfig {
	if len(columns) == 0 {
		return c.fields
	}

	want := make(map[string]bool, len(columns))
	for _, col := range columns {
		want[tabular.NormalizeName(col)] = true
	}

	var out []FieldConfig
	for _, f := range c.fields {
		names := append([]string{f.Name}, f.Aliases...)
		if slices.ContainsFunc(names, func(n string) bool { return want[tabular.NormalizeName(n)] }) {
			out = append(out, f)
		}
	}
	return out
}

// CleanFile cleans the CSV at in and writes the result to out, which may be
// the same path.
func (c *Cleaner) CleanFile(in, out string, columns []string) (CleanStats, error) {
	t, err := tabular.ReadCSV(in)
	if err != nil {
		return CleanStats{}, fmt.Errorf("read %s: %w", in, err)
	}

	stats := c.CleanTable(t, columns)

	if err := tabular.WriteCSV(out, t, tabular.WriteOptions{BOM: true}); err != nil {
		return stats, fmt.Errorf("write %s: %w", out, err)
	}

	for _, name := range stats.Missing {
		slog.Warn("date column not found", "file", filepath.Base(in), "field", name)
	}
	if c.opts.LogDetails {
		for _, cs := range stats.Columns {
			slog.Info("date column cleaned",
				"file", filepath.Base(in),
				"column", cs.Column,
				"resolved", cs.Resolved,
				"failed", cs.Failed,
			)
		}
	}
	return stats, nil
}

// CleanFolder cleans every CSV in inDir into outDir under the same name. A
// file that fails is logged and does not stop the others; the first such
// error is returned after all files are done.
func (c *Cleaner) CleanFolder(ctx context.Context, inDir, outDir string, columns []string, workers int) (map[string]CleanStats, error) {
	files, err := tabular.ListFiles(inDir, ".csv")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", inDir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	var (
		mu       sync.Mutex
		all      = make(map[string]CleanStats, len(files))
		firstErr error
	)

	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			name := filepath.Base(path)
			stats, err := c.CleanFile(path, filepath.Join(outDir, name), columns)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Error("date cleaning failed", "file", name, "error", err)
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			all[name] = stats
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, firstErr
}
