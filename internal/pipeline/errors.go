package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/datarefinery/internal/fields"
	"github.com/JonMunkholm/datarefinery/internal/header"
	"github.com/JonMunkholm/datarefinery/internal/store"
	"github.com/JonMunkholm/datarefinery/internal/xlsx"
)

// UserMessage describes a failure with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for reference
}

var (
	msgHeaderNotFound = UserMessage{"Header row not found", "Add the table's column labels to field_detection.keywords", "HDR001"}
	msgHeaderLastRow  = UserMessage{"Header row is the last row", "The file has no data below its header", "HDR002"}
	msgEmptyFile      = UserMessage{"File is empty", "Remove the file or re-export it", "HDR003"}
	msgEncoding       = UserMessage{"File could not be decoded", "Add the file's encoding to encoding.fallback", "FILE003"}
	msgMarker         = UserMessage{"Converted output contains an error marker", "Fix the formulas in the workbook and rerun with retry_mode: failed", "FILE005"}
	msgDictionary     = UserMessage{"Rename dictionary is malformed", "The dictionary sheet needs old_field and new_field columns", "CFG002"}
	msgNoLoadColumns  = UserMessage{"Load file has no columns", "Check the earlier steps produced a merged result", "DB003"}
	msgCancelled      = UserMessage{"Run was cancelled", "Rerun the pipeline from the failed step", "RUN001"}
)

// sentinels are checked with errors.Is before any pattern.
var sentinels = []struct {
	err error
	msg UserMessage
}{
	{header.ErrHeaderNotFound, msgHeaderNotFound},
	{header.ErrHeaderIsLastRow, msgHeaderLastRow},
	{header.ErrEmptyFile, msgEmptyFile},
	{xlsx.ErrMarkerFound, msgMarker},
	{fields.ErrBadDictionary, msgDictionary},
	{store.ErrNoColumns, msgNoLoadColumns},
	{context.Canceled, msgCancelled},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Configuration
	{"config validation", UserMessage{"Configuration is invalid", "Fix the listed settings in pipeline.yaml", "CFG001"}},
	{"must both exist", UserMessage{"Required columns are missing", "Check the column names against the input header", "CFG003"}},
	{"no columns requested", UserMessage{"No columns to extract", "Set content_extraction.columns or pass --columns", "CFG004"}},

	// Dates
	{"compile date rules", UserMessage{"A date rule is invalid", "Check strptime_format and regex_pattern of date_cleaning.parse_formats", "DATE001"}},
	{"unknown on_parse_failure", UserMessage{"A date option is invalid", "Use keep_original, set_null or drop_row", "DATE002"}},
	{"unknown output_mode", UserMessage{"A date option is invalid", "Use replace or add_column", "DATE002"}},

	// Database
	{"connection refused", UserMessage{"Unable to connect to database", "Check database.url and that the server is running", "DB001"}},
	{"timeout", UserMessage{"Database operation timed out", "Try again later", "DB002"}},
	{"permission denied for", UserMessage{"Database permission denied", "Grant CREATE and INSERT on the target schema", "DB004"}},

	// Files
	{"open workbook", UserMessage{"Workbook could not be opened", "Re-save the file as .xlsx", "FILE004"}},
	{"undecodable", msgEncoding},
	{"invalid utf-8", msgEncoding},
	{"no such file or directory", UserMessage{"Input not found", "Check the paths section of pipeline.yaml", "FILE001"}},
	{"not a directory", UserMessage{"Path is not a directory", "Check the paths section of pipeline.yaml", "FILE002"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log for details",
	Code:    "ERR000",
}

// MapError converts an error to a coded message. A nil error yields the
// zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	var decErr *header.DecodeError
	if errors.As(err, &decErr) {
		return msgEncoding
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
