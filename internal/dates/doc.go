// Package dates turns free-form date text from spreadsheet exports into
// canonical "2006-01-02 15:04:05" timestamps.
//
// Resolution order per value:
//
//  1. configured rules, first full regex match decides the template
//  2. the generic parser from github.com/araddon/dateparse
//  3. a bare 1-5 digit string read as a spreadsheet serial day
//
// Explicit rules run first so that locale-ambiguous strings such as
// 01/02/2024 are only guessed at when nothing configured claims them.
//
// [Cleaner] applies a [Normalizer] to named CSV columns and handles values
// that stay unresolved according to its [FailurePolicy].
package dates
