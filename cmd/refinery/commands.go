package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datarefinery/internal/config"
	"github.com/JonMunkholm/datarefinery/internal/fields"
	"github.com/JonMunkholm/datarefinery/internal/logging"
	"github.com/JonMunkholm/datarefinery/internal/pipeline"
)

// app carries what the persistent pre-run loads for every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	logCloser  io.Closer
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "refinery",
		Short:         "Batch ETL for exported shipment spreadsheets",
		Long:          "Converts workbooks to CSV, finds header rows, renames and extracts fields, cleans order numbers and dates, and optionally loads the result into PostgreSQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "path to the pipeline configuration file")

	cmd.AddCommand(a.newPipelineCommand())
	cmd.AddCommand(a.newXLSXCommand())
	cmd.AddCommand(a.newStepCommand("flatten", "Flatten the CSV results folder", pipeline.StepFlatten))
	cmd.AddCommand(a.newStepCommand("find-header", "Detect header rows", pipeline.StepFindHeader))
	cmd.AddCommand(a.newStepCommand("extract-fields", "Write the field inventory", pipeline.StepExtractFields))
	cmd.AddCommand(a.newStepCommand("array-agg", "Aggregate the field inventory", pipeline.StepArrayAgg))
	cmd.AddCommand(a.newStepCommand("field-replace", "Rename fields with the dictionary", pipeline.StepFieldReplace))
	cmd.AddCommand(a.newExtractCommand())
	cmd.AddCommand(a.newStepCommand("field-clean", "Clean order number columns", pipeline.StepOrderClean))
	cmd.AddCommand(a.newStepCommand("date-clean", "Normalize date columns", pipeline.StepDateClean))
	cmd.AddCommand(a.newStepCommand("load", "Load the cleaned result into PostgreSQL", pipeline.StepLoad))

	return cmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}

	closer, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logCloser = closer

	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}

func (a *app) newPipelineCommand() *cobra.Command {
	var from, to int
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the full pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := pipeline.New(a.cfg).Run(cmd.Context(), from, to)
			if err != nil {
				slog.Error("pipeline failed", "error", pipeline.FormatUserError(err))
				return err
			}
			if report.Stopped {
				slog.Warn("pipeline stopped after conversion failures", "failed_list", a.cfg.XLSXToCSV.FailedListPath)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "index of the first step to run")
	cmd.Flags().IntVar(&to, "to", 0, "index after the last step to run (0 runs to the end)")
	return cmd
}

func (a *app) newXLSXCommand() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "xlsx-to-csv",
		Short: "Convert workbooks to CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("mode") {
				if mode != "all" && mode != "failed" {
					return fmt.Errorf("--mode must be all or failed, got %q", mode)
				}
				a.cfg.XLSXToCSV.RetryMode = mode
			}
			return a.runStep(cmd, pipeline.StepXLSXToCSV)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "all", "convert all workbooks or only those in the failed list (all|failed)")
	return cmd
}

func (a *app) newExtractCommand() *cobra.Command {
	var columns string
	var merge bool
	cmd := &cobra.Command{
		Use:   "extract-content",
		Short: "Extract columns into the result folder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if columns != "" {
				a.cfg.ContentExtraction.Columns = fields.SplitColumns(columns)
			}
			if cmd.Flags().Changed("merge") {
				a.cfg.ContentExtraction.Merge = merge
			}
			return a.runStep(cmd, pipeline.StepExtract)
		},
	}
	cmd.Flags().StringVar(&columns, "columns", "", "columns to extract, separated by , ， ; or ；")
	cmd.Flags().BoolVar(&merge, "merge", false, "merge every source into one merge.csv")
	return cmd
}

func (a *app) newStepCommand(use, short, step string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runStep(cmd, step)
		},
	}
}

func (a *app) runStep(cmd *cobra.Command, step string) error {
	if err := pipeline.New(a.cfg).RunStep(cmd.Context(), step); err != nil {
		slog.Error("command failed", "error", pipeline.FormatUserError(err))
		return err
	}
	return nil
}
