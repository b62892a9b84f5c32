package fields

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

// OrderRule validates one identifier column, typically a waybill number.
type OrderRule struct {
	Name           string   `yaml:"name"`
	Aliases        []string `yaml:"aliases"`
	MinLength      int      `yaml:"min_length"`
	MaxLength      int      `yaml:"max_length"`
	AllowChinese   *bool    `yaml:"allow_chinese"`
	AllowedPattern string   `yaml:"allowed_pattern"`
}

// OrderCleanConfig is the order_clean section.
type OrderCleanConfig struct {
	// OutputMode is "replace" (overwrite and drop invalid rows) or
	// "add_column" (write <name>_cleaned and keep every row).
	OutputMode string      `yaml:"output_mode"`
	Fields     []OrderRule `yaml:"fields"`
}

var (
	trailingZero = regexp.MustCompile(`\.0$`)
	hanChar      = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
)

type orderCheck struct {
	minLen  int
	maxLen  int
	noHan   bool
	allowed *regexp.Regexp
}

func compileOrderRule(r OrderRule) (orderCheck, error) {
	c := orderCheck{minLen: r.MinLength, maxLen: r.MaxLength}
	if c.minLen <= 0 {
		c.minLen = 1
	}
	if c.maxLen <= 0 {
		c.maxLen = 999
	}
	c.noHan = r.AllowChinese != nil && !*r.AllowChinese
	if r.AllowedPattern != "" {
		re, err := regexp.Compile(`^(?:` + r.AllowedPattern + `)`)
		if err != nil {
			return c, fmt.Errorf("order rule %s: %w", r.Name, err)
		}
		c.allowed = re
	}
	return c, nil
}

func (c orderCheck) valid(v string) bool {
	n := utf8.RuneCountInString(v)
	if n < c.minLen || n > c.maxLen {
		return false
	}
	if c.noHan && hanChar.MatchString(v) {
		return false
	}
	if c.allowed != nil && !c.allowed.MatchString(v) {
		return false
	}
	return true
}

// CleanOrderValue trims v and drops a trailing ".0" left by numeric cells.
func CleanOrderValue(v string) string {
	return trailingZero.ReplaceAllString(strings.TrimSpace(v), "")
}

// CleanOrderTable applies cfg to t in place and returns the number of rows
// removed. Rules whose column is missing are logged and skipped.
func CleanOrderTable(t *tabular.Table, cfg OrderCleanConfig) (int, error) {
	before := len(t.Rows)

	for _, r := range cfg.Fields {
		if r.Name == "" {
			continue
		}
		check, err := compileOrderRule(r)
		if err != nil {
			return 0, err
		}

		col := t.ResolveColumn(r.Name, r.Aliases)
		if col < 0 {
			slog.Warn("order clean: column not found", "field", r.Name)
			continue
		}

		raw := t.Column(col)
		cleaned := make([]string, len(raw))
		keep := make([]bool, len(raw))
		for i, v := range raw {
			cleaned[i] = CleanOrderValue(v)
			keep[i] = check.valid(cleaned[i])
		}

		if cfg.OutputMode == "add_column" {
			t.AddColumn(r.Name+"_cleaned", cleaned)
			continue
		}
		t.SetColumn(col, cleaned)
		t.Filter(keep)
	}

	return before - len(t.Rows), nil
}

// CleanOrders cleans the CSV at path, or every CSV in path when it is a
// directory, writing each result next to its input as <stem>_cleaned.csv.
// It returns the output paths.
func CleanOrders(path string, cfg OrderCleanConfig) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("order clean: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = tabular.ListFiles(path, ".csv")
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", path, err)
		}
	} else if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, fmt.Errorf("order clean: %s is not a CSV file", path)
	}

	var outputs []string
	for _, f := range files {
		t, err := tabular.ReadCSV(f)
		if err != nil {
			return outputs, err
		}

		dropped, err := CleanOrderTable(t, cfg)
		if err != nil {
			return outputs, err
		}

		out := strings.TrimSuffix(f, filepath.Ext(f)) + "_cleaned.csv"
		if err := tabular.WriteCSV(out, t, tabular.WriteOptions{BOM: true}); err != nil {
			return outputs, err
		}
		slog.Info("order clean: file written", "file", filepath.Base(out), "rows", len(t.Rows), "dropped", dropped)
		outputs = append(outputs, out)
	}
	return outputs, nil
}
