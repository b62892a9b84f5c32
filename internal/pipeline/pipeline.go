package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/JonMunkholm/datarefinery/internal/config"
	"github.com/JonMunkholm/datarefinery/internal/logging"
	"github.com/JonMunkholm/datarefinery/internal/store"
	"github.com/JonMunkholm/datarefinery/internal/xlsx"
)

// Step names in execution order.
const (
	StepXLSXToCSV     = "xlsx_to_csv"
	StepFlatten       = "extract_nested"
	StepFindHeader    = "find_header"
	StepExtractFields = "extract_field_info"
	StepArrayAgg      = "array_agg"
	StepFieldReplace  = "field_replace"
	StepExtract       = "extract_content"
	StepOrderClean    = "order_clean"
	StepDateClean     = "date_clean"
	StepLoad          = "load"
)

// Connector opens the load target. The returned func releases it.
type Connector func(ctx context.Context, cfg config.DatabaseConfig) (store.DB, func(), error)

// Pipeline runs the configured steps.
type Pipeline struct {
	cfg     *config.Config
	fs      afero.Fs
	connect Connector
	steps   *Registry
	state   StateFile
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithFs sets the filesystem used for flattening.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) { p.fs = fs }
}

// WithConnector replaces the database connector used by the load step.
func WithConnector(c Connector) Option {
	return func(p *Pipeline) { p.connect = c }
}

// New builds a pipeline over cfg with every step registered.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		fs:      afero.NewOsFs(),
		connect: openPool,
		state:   StateFile{Path: cfg.Paths.StateFile},
	}
	for _, o := range opts {
		o(p)
	}

	p.steps = NewRegistry()
	p.steps.Register(Step{StepXLSXToCSV, "Excel to CSV", true, p.xlsxToCSV})
	p.steps.Register(Step{StepFlatten, "Flatten nested output", true, p.flatten})
	p.steps.Register(Step{StepFindHeader, "Detect header rows", true, p.findHeader})
	p.steps.Register(Step{StepExtractFields, "Extract field inventory", true, p.extractFields})
	p.steps.Register(Step{StepArrayAgg, "Aggregate fields", true, p.arrayAgg})
	p.steps.Register(Step{StepFieldReplace, "Rename fields", false, p.fieldReplace})
	p.steps.Register(Step{StepExtract, "Extract content", true, p.extractContent})
	p.steps.Register(Step{StepOrderClean, "Clean order numbers", true, p.orderClean})
	p.steps.Register(Step{StepDateClean, "Clean dates", false, p.dateClean})
	p.steps.Register(Step{StepLoad, "Load into database", false, p.load})
	return p
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (store.DB, func(), error) {
	pool, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// Steps returns the registered steps in execution order.
func (p *Pipeline) Steps() []Step {
	return p.steps.All()
}

// Report summarizes a Run.
type Report struct {
	RunID     string
	Completed []string
	Failed    map[string]error
	Skipped   []string

	// Stopped is set when conversion failures halted the run.
	Stopped bool
}

// Run executes steps [from, to). A to of 0 or beyond the last step runs to
// the end. A failing required step aborts the run with its error; failing
// optional steps are recorded in the report. When
// allow_flatten_on_success_only is set and the failed list has entries,
// every step after conversion is skipped.
func (p *Pipeline) Run(ctx context.Context, from, to int) (*Report, error) {
	n := p.steps.Len()
	if to <= 0 || to > n {
		to = n
	}
	if from < 0 || from >= to {
		return nil, fmt.Errorf("invalid step range [%d, %d) for %d steps", from, to, n)
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	log := logging.FromContext(ctx)
	report := &Report{RunID: runID, Failed: map[string]error{}}

	st, err := p.state.Load()
	if err != nil {
		return nil, err
	}
	st.RunID = runID
	st.Completed = nil
	st.Failed = map[string]string{}

	started := time.Now()
	log.Info("pipeline started", "from", from, "to", to)

	for i, step := range p.steps.All()[from:to] {
		i += from
		stepLog := logging.WithFields(ctx, "step", step.Name)

		if slices.Contains(p.cfg.Pipeline.Skip, step.Name) {
			stepLog.Info("step skipped by configuration")
			report.Skipped = append(report.Skipped, step.Name)
			continue
		}

		if step.Name != StepXLSXToCSV && p.cfg.XLSXToCSV.AllowFlattenOnSuccessOnly && p.cfg.XLSXToCSV.FailedListPath != "" {
			failed, err := xlsx.ReadFailedList(p.cfg.XLSXToCSV.FailedListPath)
			if err != nil {
				return report, err
			}
			if len(failed) > 0 {
				stepLog.Warn("conversion failures present, skipping remaining steps", "failed", len(failed))
				report.Stopped = true
				break
			}
		}

		stepLog.Info(fmt.Sprintf("[%d/%d] %s", i+1, n, step.Description))
		stepStart := time.Now()

		if err := step.Run(ctx); err != nil {
			msg := MapError(err)
			stepLog.Error("step failed", "code", msg.Code, "message", msg.Message, "action", msg.Action, "error", err)
			st.markFailed(i, step.Name, err)
			report.Failed[step.Name] = err
			if saveErr := p.state.Save(st); saveErr != nil {
				stepLog.Warn("state not saved", "error", saveErr)
			}
			if step.Required {
				return report, fmt.Errorf("step %s: %w", step.Name, err)
			}
			continue
		}

		stepLog.Info("step completed", "duration", time.Since(stepStart).Round(time.Millisecond))
		st.markCompleted(i, step.Name)
		report.Completed = append(report.Completed, step.Name)
		if err := p.state.Save(st); err != nil {
			stepLog.Warn("state not saved", "error", err)
		}
	}

	log.Info("pipeline finished",
		"completed", len(report.Completed),
		"failed", len(report.Failed),
		"stopped", report.Stopped,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return report, nil
}

// RunStep runs the named step alone, without the conversion-failure gate.
func (p *Pipeline) RunStep(ctx context.Context, name string) error {
	step, ok := p.steps.Get(name)
	if !ok {
		return fmt.Errorf("unknown step %q", name)
	}
	ctx = logging.WithRunID(ctx, uuid.NewString())
	if err := step.Run(ctx); err != nil {
		msg := MapError(err)
		logging.WithFields(ctx, "step", name).Error("step failed", "code", msg.Code, "message", msg.Message, "action", msg.Action)
		return fmt.Errorf("step %s: %w", name, err)
	}
	return nil
}
