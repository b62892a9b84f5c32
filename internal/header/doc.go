// Package header finds the real header row of spreadsheet exports and turns
// the rows beneath it into a labeled table.
//
// # Detection
//
// Only the first [Config.MaxHeaderSearchRows] rows are considered. A row is a
// candidate when any tracking keyword appears, case-insensitively, in the
// concatenation of its non-empty cells. Candidates are ranked by:
//
//  1. whether some short cell is a standalone keyword (exact, a prefix or
//     suffix within five extra characters, or a keyword covering at least
//     half of the cell)
//  2. escaping a degenerate best row holding at most one populated cell
//  3. the number of populated cells, between two standalone rows
//
// Ties keep the earliest row. A winner with fewer than
// [Config.MinHeaderColumns] populated cells is rejected.
//
// # Files
//
// [DecodeRows] tries each configured encoding in order and keeps the first
// that decodes the whole file without substitution. [Processor.ProcessFile]
// reports every file as success, empty, header_not_found or failed, and
// [BatchProcess] applies it to a folder with a bounded worker count.
//
// Every function here is stateless and safe to call from multiple goroutines.
package header
