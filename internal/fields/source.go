package fields

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

// source is one table read from a folder: a CSV file, or one sheet of a
// workbook.
type source struct {
	File  string
	Sheet string
	Kind  string
	Table *tabular.Table
}

const (
	kindCSV   = "csv"
	kindExcel = "excel"
)

// loadSources reads every CSV and .xlsx in dir, sorted by file name with
// sheets in workbook order. Zero-byte CSVs and workbook sheets without data
// rows are skipped.
func loadSources(ctx context.Context, dir string, workers int) ([]source, error) {
	files, err := tabular.ListFiles(dir, ".csv", ".xlsx")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	perFile := make([][]source, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var err error
			if strings.EqualFold(filepath.Ext(path), ".xlsx") {
				perFile[i], err = readWorkbook(path)
			} else {
				perFile[i], err = readCSVSource(path)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []source
	for _, s := range perFile {
		out = append(out, s...)
	}
	return out, nil
}

func readCSVSource(path string) ([]source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}

	t, err := tabular.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	return []source{{File: filepath.Base(path), Kind: kindCSV, Table: t}}, nil
}

func readWorkbook(path string) ([]source, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var out []source
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", filepath.Base(path), sheet, err)
		}
		if len(rows) < 2 {
			continue
		}
		t := &tabular.Table{Headers: rows[0], Rows: rows[1:]}
		t.Normalize()
		out = append(out, source{File: filepath.Base(path), Sheet: sheet, Kind: kindExcel, Table: t})
	}
	return out, nil
}
