package dates

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// OutputLayout is the canonical rendering of every resolved value.
const OutputLayout = "2006-01-02 15:04:05"

// excelEpoch is day zero of spreadsheet serial dates. It sits two days before
// 1900-01-01 to absorb the 1900 leap-year bug spreadsheets inherited.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerialDays keeps serial conversion inside year 9999.
const maxSerialDays = 2958465

var (
	separatorSpace = regexp.MustCompile(`(\d)([./])\s+(\d)`)
	floatSuffix    = regexp.MustCompile(`\.0$`)
	bareSerial     = regexp.MustCompile(`^\d{1,5}$`)
)

// Rule pairs a regular expression with the strptime template used to parse
// values it matches. A rule with an empty Format, or with Serial set, reads
// the matched text as a spreadsheet serial day count.
type Rule struct {
	Name    string `yaml:"name"`
	Format  string `yaml:"strptime_format"`
	Pattern string `yaml:"regex_pattern"`
	Serial  bool   `yaml:"is_excel_serial"`
}

// IsSerial reports whether r converts spreadsheet serial numbers.
func (r Rule) IsSerial() bool {
	return r.Serial || r.Format == ""
}

// DefaultRules are the formats used when no rule list is configured.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "compact", Format: "%Y%m%d", Pattern: `^\d{8}$`},
		{Name: "dot_separated", Format: "%Y.%m.%d", Pattern: `^\d{4}\.\d{1,2}\.\d{1,2}$`},
		{Name: "slash_separated", Format: "%Y/%m/%d", Pattern: `^\d{4}/\d{1,2}/\d{1,2}$`},
		{Name: "chinese_ymd", Format: "%Y年%m月%d日", Pattern: `^\d{4}年\d{1,2}月\d{1,2}日$`},
		{Name: "chinese_ymd_hao", Format: "%Y年%m月%d号", Pattern: `^\d{4}年\d{1,2}月\d{1,2}号$`},
		{Name: "chinese_ym", Format: "%Y年%m月", Pattern: `^\d{4}年\d{1,2}月$`},
		{Name: "compact_ym", Format: "%Y%m", Pattern: `^\d{6}$`},
		{Name: "dash_ym", Format: "%Y-%m", Pattern: `^\d{4}-\d{1,2}$`},
	}
}

type compiledRule struct {
	name   string
	re     *regexp.Regexp
	layout string
	serial bool
}

// Normalizer converts raw text values to canonical timestamps with an
// immutable, ordered rule list. It is safe for concurrent use.
type Normalizer struct {
	rules []compiledRule
}

// NewNormalizer compiles rules in order. Patterns must match the whole value;
// anchors are added when missing.
func NewNormalizer(rules []Rule) (*Normalizer, error) {
	n := &Normalizer{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule[%d]", i)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("%s: empty regex pattern", name)
		}

		re, err := regexp.Compile(`^(?:` + r.Pattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		cr := compiledRule{name: name, re: re, serial: r.IsSerial()}
		if !cr.serial {
			cr.layout, err = translateStrptime(r.Format)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		n.rules = append(n.rules, cr)
	}
	return n, nil
}

// Result is the outcome for one input value. Value is only meaningful when
// Resolved is true.
type Result struct {
	Value    string
	Resolved bool
}

// Normalize resolves every value independently. The output has the same
// length and order as values.
//
// Each value is pre-cleaned and then tried against the rules in order; the
// first rule whose pattern matches decides the parse, and a failed parse
// leaves the value for later rules. Values no rule resolved go to the generic
// parser, then to a bare 1-5 digit serial fallback.
func (n *Normalizer) Normalize(values []string) []Result {
	results := make([]Result, len(values))
	cleaned := make([]string, len(values))
	pending := make([]int, 0, len(values))

	for i, v := range values {
		cleaned[i] = PreClean(v)
		pending = append(pending, i)
	}

	for _, r := range n.rules {
		if len(pending) == 0 {
			break
		}
		rest := pending[:0]
		for _, i := range pending {
			if !r.re.MatchString(cleaned[i]) {
				rest = append(rest, i)
				continue
			}
			if t, ok := r.parse(cleaned[i]); ok {
				results[i] = resolved(t)
				continue
			}
			rest = append(rest, i)
		}
		pending = rest
	}

	for _, i := range pending {
		if t, ok := autoParse(cleaned[i]); ok {
			results[i] = resolved(t)
			continue
		}
		if bareSerial.MatchString(cleaned[i]) {
			if t, ok := FromSerial(cleaned[i]); ok {
				results[i] = resolved(t)
			}
		}
	}

	return results
}

// NormalizeValue is Normalize for a single value.
func (n *Normalizer) NormalizeValue(v string) Result {
	return n.Normalize([]string{v})[0]
}

func (r compiledRule) parse(s string) (time.Time, bool) {
	if r.serial {
		return FromSerial(s)
	}
	t, err := time.ParseInLocation(r.layout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func resolved(t time.Time) Result {
	return Result{Value: t.Format(OutputLayout), Resolved: true}
}

// PreClean trims s, joins digits split by whitespace after a '.' or '/'
// separator ("2024. 1. 4" becomes "2024.1.4") and drops a trailing ".0".
// Whitespace elsewhere, such as between date and time of day, is kept.
func PreClean(s string) string {
	s = strings.TrimSpace(s)
	for {
		next := separatorSpace.ReplaceAllString(s, "$1$2$3")
		if next == s {
			break
		}
		s = next
	}
	return floatSuffix.ReplaceAllString(s, "")
}

// FromSerial converts a spreadsheet serial day count, possibly fractional,
// to a timestamp. The time of day is rounded to the nearest second and never
// rolls over into the next day.
func FromSerial(s string) (time.Time, bool) {
	days, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(days) || days < 0 || days > maxSerialDays {
		return time.Time{}, false
	}

	whole := math.Floor(days)
	secs := min(math.Round((days-whole)*86400), 86399)
	return excelEpoch.AddDate(0, 0, int(whole)).Add(time.Duration(secs) * time.Second), true
}

func autoParse(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	// Year-less input such as "3/4" or "12.5" parses to year 0.
	if t.Year() == 0 {
		return time.Time{}, false
	}
	return t, true
}
