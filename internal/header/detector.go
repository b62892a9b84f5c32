package header

// detector.go locates the header row of a noisy CSV export.
//
// Exports from courier and order systems often carry a few rows of preamble
// (report titles, date ranges, totals) above the real column labels. The
// detector scans a bounded window of leading rows, keeps every row that
// mentions a tracking keyword as a candidate, and ranks candidates with an
// explicit comparator so the precedence rules stay auditable.

import (
	"strings"
	"unicode/utf8"
)

// Defaults mirror the shipped pipeline.yaml.
const (
	DefaultMaxHeaderSearchRows        = 4
	DefaultMinHeaderColumns           = 2
	DefaultMaxStandaloneKeywordLength = 20

	// affixSlack is how many characters a cell may exceed a keyword by and
	// still count as a prefixed or suffixed label ("订单运单号").
	affixSlack = 5
)

// DefaultTrackingKeywords are the labels that identify a shipment table.
var DefaultTrackingKeywords = []string{
	"单号",
	"运单号",
	"运单编号",
	"快递单号",
	"工作单号",
	"mailno",
	"原订单快递单号",
	"物流单号",
	"物流编号",
	"ship_id",
}

// Config controls header detection. It is passed by value into every
// Detector; nothing in this package keeps process-wide keyword lists.
type Config struct {
	// MaxHeaderSearchRows bounds the candidate window to the first N rows.
	MaxHeaderSearchRows int

	// TrackingKeywords qualify a row when any of them is a case-insensitive
	// substring of the row's concatenated non-empty cells.
	TrackingKeywords []string

	// MinHeaderColumns is the minimum non-empty cell count of a winning row.
	MinHeaderColumns int

	// MaxStandaloneKeywordLength is the longest trimmed cell that can count
	// as a standalone keyword.
	MaxStandaloneKeywordLength int

	// DefaultFirstRowWhenNotFound makes row 0 the header when no candidate
	// survives.
	DefaultFirstRowWhenNotFound bool
}

// DefaultConfig returns the configuration used when the pipeline file does
// not override field detection.
func DefaultConfig() Config {
	return Config{
		MaxHeaderSearchRows:        DefaultMaxHeaderSearchRows,
		TrackingKeywords:           append([]string(nil), DefaultTrackingKeywords...),
		MinHeaderColumns:           DefaultMinHeaderColumns,
		MaxStandaloneKeywordLength: DefaultMaxStandaloneKeywordLength,
	}
}

// candidate is a row that mentioned a tracking keyword.
type candidate struct {
	index      int
	nonEmpty   int
	standalone bool
}

// Detector finds header rows. It holds only immutable configuration and is
// safe for concurrent use.
type Detector struct {
	cfg      Config
	keywords []string // lowercased, empty entries dropped
}

// NewDetector creates a Detector for cfg.
func NewDetector(cfg Config) *Detector {
	keywords := make([]string, 0, len(cfg.TrackingKeywords))
	for _, kw := range cfg.TrackingKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Detector{cfg: cfg, keywords: keywords}
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// FindHeaderRow returns the index of the header row within rows.
// The boolean is false when no row qualifies; DefaultFirstRowWhenNotFound is
// applied by the caller through Resolve so that "not found" stays observable.
func (d *Detector) FindHeaderRow(rows [][]string) (int, bool) {
	if len(rows) == 0 {
		return -1, false
	}

	window := min(len(rows), max(d.cfg.MaxHeaderSearchRows, 0))

	var best *candidate
	for i := 0; i < window; i++ {
		row := rows[i]
		if !d.isCandidate(row) {
			continue
		}
		c := &candidate{
			index:      i,
			nonEmpty:   countNonEmpty(row),
			standalone: d.hasStandaloneKeyword(row),
		}
		if best == nil || better(c, best) {
			best = c
		}
	}

	if best == nil || best.nonEmpty < d.cfg.MinHeaderColumns {
		return -1, false
	}
	return best.index, true
}

// Resolve applies the row-0 fallback to a FindHeaderRow result.
func (d *Detector) Resolve(rows [][]string) (int, bool) {
	idx, ok := d.FindHeaderRow(rows)
	if ok {
		return idx, true
	}
	if d.cfg.DefaultFirstRowWhenNotFound && len(rows) > 0 {
		return 0, true
	}
	return -1, false
}

// better reports whether c should replace best. Candidates are visited in
// row order, so returning false on ties keeps the first one seen.
//
// Precedence:
//  1. a standalone-keyword row beats one without
//  2. between two non-standalone rows, a row with more than one populated
//     cell replaces a degenerate best with at most one
//  3. between two standalone rows, strictly more populated cells wins
func better(c, best *candidate) bool {
	if c.standalone != best.standalone {
		return c.standalone
	}
	if best.nonEmpty <= 1 && c.nonEmpty > 1 {
		return true
	}
	if c.standalone && c.nonEmpty > best.nonEmpty {
		return true
	}
	return false
}

// isCandidate reports whether any keyword occurs in the row's joined text.
func (d *Detector) isCandidate(row []string) bool {
	if len(row) == 0 {
		return false
	}
	var b strings.Builder
	for _, cell := range row {
		if cell != "" {
			b.WriteString(strings.ToLower(cell))
		}
	}
	text := b.String()
	for _, kw := range d.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// hasStandaloneKeyword reports whether some short cell is (nearly) a keyword
// on its own rather than a keyword buried in free text.
func (d *Detector) hasStandaloneKeyword(row []string) bool {
	for _, cell := range row {
		text := strings.ToLower(strings.TrimSpace(cell))
		if text == "" {
			continue
		}
		n := utf8.RuneCountInString(text)
		if n > d.cfg.MaxStandaloneKeywordLength {
			continue
		}
		for _, kw := range d.keywords {
			if isStandalone(text, n, kw) {
				return true
			}
		}
	}
	return false
}

// isStandalone applies the three standalone tests to one lowercased cell.
// Lengths are counted in characters so CJK labels compare like ASCII ones.
func isStandalone(cell string, cellLen int, kw string) bool {
	if cell == kw {
		return true
	}
	kwLen := utf8.RuneCountInString(kw)
	if cellLen <= kwLen+affixSlack {
		if strings.HasPrefix(cell, kw) || strings.HasSuffix(cell, kw) {
			return true
		}
	}
	return strings.Contains(cell, kw) && float64(kwLen) >= float64(cellLen)*0.5
}

func countNonEmpty(row []string) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}
