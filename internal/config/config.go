// Package config provides centralized configuration for the pipeline.
// Settings come from a YAML file (config/pipeline.yaml by default), with
// defaults taken from struct tags and selected values overridable through
// environment variables. Everything is validated on load to fail fast on
// misconfiguration.
package config

import (
	"time"

	"github.com/JonMunkholm/datarefinery/internal/dates"
	"github.com/JonMunkholm/datarefinery/internal/fields"
	"github.com/JonMunkholm/datarefinery/internal/header"
)

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "config/pipeline.yaml"

// Config holds all pipeline configuration.
type Config struct {
	Paths             PathsConfig             `yaml:"paths"`
	Performance       PerformanceConfig       `yaml:"performance"`
	Encoding          EncodingConfig          `yaml:"encoding"`
	FieldDetection    FieldDetectionConfig    `yaml:"field_detection"`
	XLSXToCSV         XLSXConfig              `yaml:"xlsx_to_csv"`
	FieldReplace      FieldReplaceConfig      `yaml:"field_replace"`
	ContentExtraction ContentConfig           `yaml:"content_extraction"`
	OrderClean        fields.OrderCleanConfig `yaml:"order_clean"`
	DateCleaning      DateCleaningConfig      `yaml:"date_cleaning"`
	Database          DatabaseConfig          `yaml:"database"`
	Logging           LoggingConfig           `yaml:"logging"`
	Pipeline          PipelineConfig          `yaml:"pipeline"`
}

// PathsConfig names the folders each stage reads and writes.
type PathsConfig struct {
	ExcelFolder   string `yaml:"excel_folder" default:"excel_folder"`
	CSVResults    string `yaml:"csv_results_folder" default:"csv_results_folder"`
	MidFiles      string `yaml:"mid_files" default:"mid_files"`
	HeaderOutput  string `yaml:"tmp_find_header_row" default:"mid_files/tmp_find_header_row"`
	ReplaceOutput string `yaml:"tmp_field_replace" default:"mid_files/tmp_field_replace"`
	ResultFiles   string `yaml:"result_files" default:"Result_files"`

	// StateFile records pipeline progress between runs.
	StateFile string `yaml:"state_file" env:"REFINERY_STATE_FILE" default:".pipeline_state.json"`
}

// PerformanceConfig bounds concurrency.
type PerformanceConfig struct {
	// MaxWorkers is the number of files processed in parallel (default: 4)
	MaxWorkers int `yaml:"max_workers" env:"REFINERY_MAX_WORKERS" default:"4"`
}

// EncodingConfig lists the encodings tried, in order, when decoding CSVs.
type EncodingConfig struct {
	Fallback []string `yaml:"fallback" env:"REFINERY_ENCODINGS" default:"utf-8,utf-8-sig,gbk,gb18030,gb2312,latin1"`
}

// FieldDetectionConfig drives header detection.
type FieldDetectionConfig struct {
	MaxRowsToCheck              int      `yaml:"max_rows_to_check" default:"4"`
	Keywords                    []string `yaml:"keywords"`
	MinHeaderColumns            int      `yaml:"min_header_columns" default:"2"`
	MaxStandaloneKeywordLength  int      `yaml:"max_standalone_keyword_length" default:"20"`
	DefaultFirstRowWhenNotFound bool     `yaml:"default_first_row_when_not_found"`
}

// XLSXConfig drives workbook conversion.
type XLSXConfig struct {
	// RetryMode is "all" or "failed" (default: all)
	RetryMode      string `yaml:"retry_mode" env:"REFINERY_RETRY_MODE" default:"all"`
	FailedListPath string `yaml:"failed_list_path" default:"mid_files/failed_xlsx.csv"`

	// AllowFlattenOnSuccessOnly stops the pipeline after conversion when
	// any workbook failed (default: true)
	AllowFlattenOnSuccessOnly bool `yaml:"allow_flatten_on_success_only" default:"true"`

	// RemoveFailedOutputs deletes partial output of failed workbooks (default: true)
	RemoveFailedOutputs bool `yaml:"remove_failed_outputs" default:"true"`

	FailureMarkers     []string `yaml:"failure_markers"`
	FailureScanColumns []string `yaml:"failure_scan_columns"`
	LogDetail          bool     `yaml:"log_detail"`
}

// FieldReplaceConfig locates the rename dictionary.
type FieldReplaceConfig struct {
	Enabled    bool   `yaml:"enabled" default:"true"`
	Dictionary string `yaml:"dictionary" default:"config/dict_zh.xlsx"`
	Sheet      string `yaml:"sheet" default:"dict"`
}

// ContentConfig drives content extraction.
type ContentConfig struct {
	Columns     []string `yaml:"columns" env:"REFINERY_COLUMNS"`
	Merge       bool     `yaml:"merge" default:"true"`
	ClearOutput bool     `yaml:"clear_output" default:"true"`
}

// DateCleaningConfig drives the date stage. When ConfigFile is set, the
// date_cleaning section of that file supplies the fields, formats and
// options.
type DateCleaningConfig struct {
	Enabled    bool                `yaml:"enabled" default:"true"`
	ConfigFile string              `yaml:"config_file"`
	Columns    []string            `yaml:"columns"`
	Fields     []dates.FieldConfig `yaml:"date_fields"`
	Formats    []dates.Rule        `yaml:"parse_formats"`
	Options    dates.Options       `yaml:"options"`
}

// DatabaseConfig holds the optional load target.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables the load step.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `yaml:"url" env:"DATABASE_URL" envAlt:"DB_URL"`

	// Table receives the cleaned rows (default: refined_orders)
	Table string `yaml:"table" env:"REFINERY_TABLE" default:"refined_orders"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `yaml:"max_conns" env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `yaml:"min_conns" env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`

	// File additionally receives every record when set.
	File string `yaml:"file" env:"LOG_FILE"`
}

// PipelineConfig tunes step selection.
type PipelineConfig struct {
	// Skip names steps that are never run.
	Skip []string `yaml:"skip" env:"REFINERY_SKIP_STEPS"`
}

// HeaderConfig converts the field_detection section for the detector.
// An empty keyword list means the built-in keywords.
func (c *Config) HeaderConfig() header.Config {
	kw := c.FieldDetection.Keywords
	if len(kw) == 0 {
		kw = header.DefaultTrackingKeywords
	}
	return header.Config{
		MaxHeaderSearchRows:         c.FieldDetection.MaxRowsToCheck,
		TrackingKeywords:            append([]string(nil), kw...),
		MinHeaderColumns:            c.FieldDetection.MinHeaderColumns,
		MaxStandaloneKeywordLength:  c.FieldDetection.MaxStandaloneKeywordLength,
		DefaultFirstRowWhenNotFound: c.FieldDetection.DefaultFirstRowWhenNotFound,
	}
}
