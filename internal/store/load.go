package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/datarefinery/internal/header"
	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

// ErrNoColumns reports a CSV without a header row.
var ErrNoColumns = errors.New("csv has no columns")

// LoadCSV creates table if it does not exist, with one text column per CSV
// header, and bulk copies the rows of the CSV at path into it. Empty cells
// are loaded as NULL. It returns the number of rows copied.
func LoadCSV(ctx context.Context, db DB, path, table string) (int64, error) {
	t, err := tabular.ReadCSV(path)
	if err != nil {
		return 0, err
	}
	if len(t.Headers) == 0 {
		return 0, fmt.Errorf("load %s: %w", path, ErrNoColumns)
	}

	ident := TableIdentifier(table)
	cols := ColumnNames(t.Headers)

	if _, err := db.Exec(ctx, CreateTableSQL(ident, cols)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", table, err)
	}

	src := pgx.CopyFromSlice(len(t.Rows), func(i int) ([]any, error) {
		row := t.Rows[i]
		vals := make([]any, len(cols))
		for j := range vals {
			if j < len(row) && row[j] != "" {
				vals[j] = row[j]
			}
		}
		return vals, nil
	})

	n, err := db.CopyFrom(ctx, ident, cols, src)
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}

	slog.Info("load: rows copied", "table", table, "rows", n)
	return n, nil
}

// ColumnNames turns CSV header labels into column names: BOM and
// surrounding whitespace removed, blanks named column_N (1-based) and
// repeats suffixed.
func ColumnNames(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.ReplaceAll(h, "\ufeff", ""))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		out[i] = h
	}
	return header.UniqueHeaders(out)
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS with every column typed
// text. Identifiers are quoted.
func CreateTableSQL(table pgx.Identifier, cols []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c}.Sanitize() + " text"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table.Sanitize(), strings.Join(defs, ", "))
}
