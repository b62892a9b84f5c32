package header

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

// Status is the per-file outcome recorded in batch bookkeeping.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusEmpty          Status = "empty"
	StatusHeaderNotFound Status = "header_not_found"
	StatusFailed         Status = "failed"
)

// FileResult describes what happened to one file. HeaderRow is 1-based for
// display and zero when no header was chosen.
type FileResult struct {
	File      string
	Encoding  string
	HeaderRow int
	DataRows  int
	Status    Status
	Message   string
	Err       error
}

// Processor decodes, detects and labels single files.
type Processor struct {
	detector  *Detector
	encodings []string
}

// NewProcessor creates a Processor. An empty encodings list uses
// DefaultEncodings.
func NewProcessor(cfg Config, encodings []string) *Processor {
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}
	return &Processor{detector: NewDetector(cfg), encodings: encodings}
}

// ProcessFile reads path and returns its labeled table. The table is nil
// whenever the status is not StatusSuccess; the reason is in the result.
func (p *Processor) ProcessFile(path string) (*tabular.Table, FileResult) {
	name := filepath.Base(path)
	res := FileResult{File: name}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, res.fail(StatusFailed, fmt.Errorf("read %s: %w", name, err))
	}

	table, res := p.Process(name, data)
	return table, res
}

// Process runs decode, detect and build over in-memory file content.
func (p *Processor) Process(name string, data []byte) (*tabular.Table, FileResult) {
	res := FileResult{File: name}

	rows, enc, err := DecodeRows(name, data, p.encodings)
	if err != nil {
		return nil, res.fail(StatusFailed, err)
	}
	res.Encoding = enc

	if len(rows) == 0 {
		return nil, res.fail(StatusEmpty, fmt.Errorf("%w: %s", ErrEmptyFile, name))
	}

	idx, ok := p.detector.Resolve(rows)
	if !ok {
		return nil, res.fail(StatusHeaderNotFound, fmt.Errorf("%w: %s", ErrHeaderNotFound, name))
	}
	res.HeaderRow = idx + 1

	table, err := BuildTable(rows, idx)
	if err != nil {
		return nil, res.fail(StatusFailed, fmt.Errorf("%s: %w", name, err))
	}

	res.DataRows = len(table.Rows)
	res.Status = StatusSuccess
	return table, res
}

func (r FileResult) fail(status Status, err error) FileResult {
	r.Status = status
	r.Err = err
	r.Message = err.Error()
	return r
}

// BatchStats summarizes a BatchProcess run. Files is ordered like the input
// listing regardless of completion order.
type BatchStats struct {
	Total   int
	Success int
	Failed  int
	Empty   int
	Files   []FileResult
}

// BatchProcess detects headers for every CSV in inputDir and writes the
// labeled tables to outputDir under the same name (UTF-8 with BOM).
// Per-file failures are recorded in the stats and never abort the batch;
// only context cancellation or an unreadable input directory does.
func BatchProcess(ctx context.Context, inputDir, outputDir string, cfg Config, encodings []string, workers int) (*BatchStats, error) {
	files, err := tabular.ListFiles(inputDir, ".csv")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", inputDir, err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outputDir, err)
	}

	proc := NewProcessor(cfg, encodings)
	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	var mu sync.Mutex
	stats := &BatchStats{Total: len(files)}

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			table, res := proc.ProcessFile(path)
			if table != nil && len(table.Rows) > 0 {
				out := filepath.Join(outputDir, filepath.Base(path))
				if err := tabular.WriteCSV(out, table, tabular.WriteOptions{BOM: true}); err != nil {
					res = res.fail(StatusFailed, err)
				}
			}
			results[i] = res

			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.Status == StatusSuccess:
				stats.Success++
			case res.Status == StatusEmpty:
				stats.Empty++
			default:
				stats.Failed++
			}
			logResult(res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Files = results
	return stats, nil
}

func logResult(res FileResult) {
	switch {
	case res.Status == StatusSuccess:
		slog.Debug("header detected",
			"file", res.File,
			"encoding", res.Encoding,
			"header_row", res.HeaderRow,
			"data_rows", res.DataRows,
		)
	case errors.Is(res.Err, ErrEmptyFile):
		slog.Warn("empty file", "file", res.File)
	default:
		slog.Warn("header detection failed", "file", res.File, "status", res.Status, "error", res.Err)
	}
}
