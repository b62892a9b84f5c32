// Package pipeline runs the refinery stages in order: workbook conversion,
// flattening, header detection, field inventory and aggregation, header
// renaming, content extraction, order and date cleaning and the optional
// database load. Progress is kept in a JSON state file and every log record
// of a run carries its run ID.
//
// # Error Codes Reference
//
// Step failures are reported with a short code so a failed run can be
// diagnosed from one log line.
//
// File errors (FILE001-FILE099):
//
//	FILE001 - Input not found: a configured file or folder does not exist
//	FILE002 - Not a directory: a folder path points at a file
//	FILE003 - Encoding error: no configured encoding could decode a CSV
//	FILE004 - Workbook unreadable: an .xlsx could not be opened
//	FILE005 - Failure marker: converted output contains an error marker
//
// Header errors (HDR001-HDR099):
//
//	HDR001 - Header not found
//	HDR002 - Header is the last row: the table has no data rows
//	HDR003 - Empty file
//
// Date errors (DATE001-DATE099):
//
//	DATE001 - Bad date rule: a parse format or regex does not compile
//	DATE002 - Bad date option: unknown on_parse_failure or output_mode
//
// Configuration errors (CFG001-CFG099):
//
//	CFG001 - Invalid configuration
//	CFG002 - Bad dictionary: the rename dictionary lacks required columns
//	CFG003 - Missing columns: a required column is absent from the input
//	CFG004 - No columns: content extraction has nothing to extract
//
// Database errors (DB001-DB099):
//
//	DB001 - Connection refused
//	DB002 - Timeout
//	DB003 - No columns: the load file has no header row
//	DB004 - Permission denied
//
// Run errors (RUN001-RUN099):
//
//	RUN001 - Cancelled
//
// Fallback: ERR000 - Unknown error; check the log for the wrapped error.
//
// Sentinel errors are matched with errors.Is first. Otherwise patterns are
// matched case-insensitively with strings.Contains and the first match wins,
// so more specific patterns come before general ones.
package pipeline
