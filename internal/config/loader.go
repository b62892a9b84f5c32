package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/datarefinery/internal/dates"
	"github.com/JonMunkholm/datarefinery/internal/fields"
)

// Load reads the YAML file at path. Defaults are applied first, then the
// file, then environment overrides. A missing file yields the defaults.
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	v := reflect.ValueOf(cfg).Elem()

	if err := loadStruct(v, applyDefault); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config read: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config parse %s: %w", path, err)
		}
	}

	if err := loadStruct(v, applyEnv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.loadDateFile(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadDateFile overlays the date_cleaning section of the separate date
// file. Enabled, config_file and columns stay as the main file set them.
func (c *Config) loadDateFile() error {
	dc := c.DateCleaning
	if dc.ConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(dc.ConfigFile)
	if err != nil {
		return fmt.Errorf("date config: %w", err)
	}

	var file struct {
		DateCleaning DateCleaningConfig `yaml:"date_cleaning"`
	}
	file.DateCleaning = dc
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("date config parse %s: %w", dc.ConfigFile, err)
	}

	merged := file.DateCleaning
	merged.Enabled = dc.Enabled
	merged.ConfigFile = dc.ConfigFile
	merged.Columns = dc.Columns
	c.DateCleaning = merged
	return nil
}

type pass int

const (
	applyDefault pass = iota
	applyEnv
)

// loadStruct recursively populates struct fields, either from their
// default tags or from environment variables.
func loadStruct(v reflect.Value, p pass) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, p); err != nil {
				return err
			}
			continue
		}

		var name, value string
		switch p {
		case applyDefault:
			name = field.Name
			value = field.Tag.Get("default")
		case applyEnv:
			name = field.Tag.Get("env")
			if name == "" {
				continue
			}
			// Try primary env var, then alternate
			value = os.Getenv(name)
			if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
				value = os.Getenv(alt)
			}
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split on ASCII and full-width separators, trim whitespace
			field.Set(reflect.ValueOf(fields.SplitColumns(value)))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Performance.MaxWorkers <= 0 {
		errs = append(errs, "performance.max_workers must be positive")
	}
	if len(c.Encoding.Fallback) == 0 {
		errs = append(errs, "encoding.fallback must list at least one encoding")
	}

	// Field detection validation
	if c.FieldDetection.MaxRowsToCheck <= 0 {
		errs = append(errs, "field_detection.max_rows_to_check must be positive")
	}
	if c.FieldDetection.MinHeaderColumns < 1 {
		errs = append(errs, "field_detection.min_header_columns must be at least 1")
	}
	if c.FieldDetection.MaxStandaloneKeywordLength < 0 {
		errs = append(errs, "field_detection.max_standalone_keyword_length must be non-negative")
	}

	if !slices.Contains([]string{"all", "failed"}, c.XLSXToCSV.RetryMode) {
		errs = append(errs, fmt.Sprintf("xlsx_to_csv.retry_mode (%q) must be one of: all, failed", c.XLSXToCSV.RetryMode))
	}

	if c.FieldReplace.Enabled && c.FieldReplace.Dictionary == "" {
		errs = append(errs, "field_replace.dictionary is required when field_replace is enabled")
	}

	if !slices.Contains([]string{"", "replace", "add_column"}, c.OrderClean.OutputMode) {
		errs = append(errs, fmt.Sprintf("order_clean.output_mode (%q) must be one of: replace, add_column", c.OrderClean.OutputMode))
	}

	// Date cleaning validation
	if err := c.DateCleaning.Options.Validate(); err != nil {
		errs = append(errs, "date_cleaning.options: "+err.Error())
	}
	if c.DateCleaning.Enabled && len(c.DateCleaning.Formats) > 0 {
		if _, err := dates.NewNormalizer(c.DateCleaning.Formats); err != nil {
			errs = append(errs, "date_cleaning.parse_formats: "+err.Error())
		}
	}

	// Database validation
	if c.Database.URL != "" {
		if c.Database.Table == "" {
			errs = append(errs, "database.table is required when database.url is set")
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Paths: {Excel: %q, Results: %q}, ", c.Paths.ExcelFolder, c.Paths.ResultFiles))
	b.WriteString(fmt.Sprintf("Performance: {MaxWorkers: %d}, ", c.Performance.MaxWorkers))
	url := ""
	if c.Database.URL != "" {
		url = "[MASKED]"
	}
	b.WriteString(fmt.Sprintf("Database: {URL: %s, Table: %q, MaxConns: %d}, ", url, c.Database.Table, c.Database.MaxConns))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
