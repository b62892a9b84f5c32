package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/datarefinery/internal/dates"
	"github.com/JonMunkholm/datarefinery/internal/fields"
	"github.com/JonMunkholm/datarefinery/internal/flatten"
	"github.com/JonMunkholm/datarefinery/internal/header"
	"github.com/JonMunkholm/datarefinery/internal/logging"
	"github.com/JonMunkholm/datarefinery/internal/store"
	"github.com/JonMunkholm/datarefinery/internal/xlsx"
)

// Intermediate and result file names.
const (
	FieldInfoFile    = "field_info.csv"
	AggregateFile    = "agg.csv"
	MergeCleanedFile = "merge_cleaned.csv"
)

// ErrNoDateInput reports that neither merged result exists for date
// cleaning.
var ErrNoDateInput = errors.New("no merged result to clean")

func (p *Pipeline) xlsxToCSV(ctx context.Context) error {
	c := p.cfg.XLSXToCSV
	results, err := xlsx.ConvertFolder(ctx, p.cfg.Paths.ExcelFolder, p.cfg.Paths.CSVResults, xlsx.Options{
		FailureMarkers:     c.FailureMarkers,
		FailureScanColumns: c.FailureScanColumns,
		RetryMode:          c.RetryMode,
		FailedListPath:     c.FailedListPath,
		LogDetail:          c.LogDetail,
	})
	if err != nil {
		return err
	}

	var failed []string
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r.File)
		}
	}

	log := logging.FromContext(ctx)
	log.Info("workbooks converted", "total", len(results), "failed", len(failed))
	if len(failed) == 0 {
		return nil
	}

	log.Warn("failed workbooks", "files", failed)
	if c.RemoveFailedOutputs {
		return xlsx.RemoveFailedOutputs(p.cfg.Paths.CSVResults, failed)
	}
	return nil
}

func (p *Pipeline) flatten(ctx context.Context) error {
	stats, err := flatten.Flatten(p.fs, p.cfg.Paths.CSVResults)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("folders flattened",
		"moved", stats.Moved,
		"renamed", stats.Renamed,
		"failed", stats.Failed,
		"removed_dirs", stats.RemovedDirs,
	)
	return nil
}

func (p *Pipeline) findHeader(ctx context.Context) error {
	stats, err := header.BatchProcess(ctx,
		p.cfg.Paths.CSVResults,
		p.cfg.Paths.HeaderOutput,
		p.cfg.HeaderConfig(),
		p.cfg.Encoding.Fallback,
		p.cfg.Performance.MaxWorkers,
	)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("headers detected",
		"total", stats.Total,
		"success", stats.Success,
		"empty", stats.Empty,
		"failed", stats.Failed,
	)
	return nil
}

func (p *Pipeline) extractFields(ctx context.Context) error {
	out := filepath.Join(p.cfg.Paths.MidFiles, FieldInfoFile)
	n, err := fields.ExtractFields(ctx, p.cfg.Paths.HeaderOutput, out, p.cfg.Performance.MaxWorkers)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("field inventory written", "file", out, "rows", n)
	return nil
}

func (p *Pipeline) arrayAgg(ctx context.Context) error {
	in := filepath.Join(p.cfg.Paths.MidFiles, FieldInfoFile)
	out := filepath.Join(p.cfg.Paths.MidFiles, AggregateFile)
	n, err := fields.Aggregate(in, fields.ColFieldName, fields.ColFileName, out)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("fields aggregated", "file", out, "groups", n)
	return nil
}

func (p *Pipeline) fieldReplace(ctx context.Context) error {
	c := p.cfg.FieldReplace
	log := logging.FromContext(ctx)
	if !c.Enabled {
		log.Info("field replace disabled")
		return nil
	}

	dict, err := fields.LoadDictionary(c.Dictionary, c.Sheet)
	if err != nil {
		return err
	}
	n, err := fields.ReplaceFields(dict, p.cfg.Paths.HeaderOutput, p.cfg.Paths.ReplaceOutput)
	if err != nil {
		return err
	}
	log.Info("fields renamed", "files", n, "mappings", len(dict))
	return nil
}

// contentInput is the renamed folder when field replacement is enabled and
// produced one, otherwise the header detection output.
func (p *Pipeline) contentInput() string {
	if p.cfg.FieldReplace.Enabled {
		if info, err := os.Stat(p.cfg.Paths.ReplaceOutput); err == nil && info.IsDir() {
			return p.cfg.Paths.ReplaceOutput
		}
	}
	return p.cfg.Paths.HeaderOutput
}

func (p *Pipeline) extractContent(ctx context.Context) error {
	c := p.cfg.ContentExtraction
	in := p.contentInput()
	n, err := fields.ExtractContent(ctx, in, p.cfg.Paths.ResultFiles, fields.ContentOptions{
		Columns:     c.Columns,
		Merge:       c.Merge,
		ClearOutput: c.ClearOutput,
		Workers:     p.cfg.Performance.MaxWorkers,
	})
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("content extracted", "input", in, "rows", n, "merge", c.Merge)
	return nil
}

// orderTarget is merge.csv when merging, otherwise the result folder.
func (p *Pipeline) orderTarget() string {
	if p.cfg.ContentExtraction.Merge {
		return filepath.Join(p.cfg.Paths.ResultFiles, fields.MergeFile)
	}
	return p.cfg.Paths.ResultFiles
}

func (p *Pipeline) orderClean(ctx context.Context) error {
	log := logging.FromContext(ctx)
	if len(p.cfg.OrderClean.Fields) == 0 {
		log.Info("order clean: no fields configured")
		return nil
	}

	outputs, err := fields.CleanOrders(p.orderTarget(), p.cfg.OrderClean)
	if err != nil {
		return err
	}
	log.Info("orders cleaned", "files", len(outputs))
	return nil
}

// mergedResult returns merge_cleaned.csv when it exists, else merge.csv.
func (p *Pipeline) mergedResult() (string, error) {
	for _, name := range []string{MergeCleanedFile, fields.MergeFile} {
		path := filepath.Join(p.cfg.Paths.ResultFiles, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoDateInput, p.cfg.Paths.ResultFiles)
}

func (p *Pipeline) dateClean(ctx context.Context) error {
	c := p.cfg.DateCleaning
	log := logging.FromContext(ctx)
	if !c.Enabled {
		log.Info("date cleaning disabled")
		return nil
	}

	cleaner, err := dates.NewCleaner(c.Formats, c.Fields, c.Options)
	if err != nil {
		return err
	}

	if !p.cfg.ContentExtraction.Merge {
		all, err := cleaner.CleanFolder(ctx, p.cfg.Paths.ResultFiles, p.cfg.Paths.ResultFiles, c.Columns, p.cfg.Performance.MaxWorkers)
		log.Info("dates cleaned", "files", len(all))
		return err
	}

	in, err := p.mergedResult()
	if err != nil {
		return err
	}
	out := filepath.Join(p.cfg.Paths.ResultFiles, MergeCleanedFile)
	stats, err := cleaner.CleanFile(in, out, c.Columns)
	if err != nil {
		return err
	}
	log.Info("dates cleaned",
		"input", filepath.Base(in),
		"rows", stats.Rows,
		"dropped", stats.DroppedRows,
		"columns", len(stats.Columns),
	)
	return nil
}

func (p *Pipeline) load(ctx context.Context) error {
	c := p.cfg.Database
	log := logging.FromContext(ctx)
	if c.URL == "" {
		log.Info("load skipped: no database configured")
		return nil
	}

	path, err := p.mergedResult()
	if err != nil {
		return err
	}

	db, release, err := p.connect(ctx, c)
	if err != nil {
		return err
	}
	defer release()

	n, err := store.LoadCSV(ctx, db, path, c.Table)
	if err != nil {
		return err
	}
	log.Info("results loaded", "file", filepath.Base(path), "table", c.Table, "rows", n)
	return nil
}
