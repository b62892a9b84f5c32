package dates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNormalizer(t *testing.T, rules ...Rule) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(rules)
	require.NoError(t, err)
	return n
}

// ----------------------------------------------------------------------------
// PreClean Tests
// ----------------------------------------------------------------------------

func TestPreClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" 2024. 1. 4 ", "2024.1.4"},
		{"2024/ 1/ 2 10:00", "2024/1/2 10:00"},
		{"1. 2. 3. 4", "1.2.3.4"},
		{"45118.0", "45118"},
		{"2024-01-02 23:30:31", "2024-01-02 23:30:31"},
		{"2024.1.4 8:00", "2024.1.4 8:00"},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PreClean(tt.in))
		})
	}
}

// ----------------------------------------------------------------------------
// Serial Tests
// ----------------------------------------------------------------------------

func TestFromSerial(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"0", "1899-12-30 00:00:00", true},
		{"60", "1900-02-28 00:00:00", true},
		{"44927", "2023-01-01 00:00:00", true},
		{"45118", "2023-07-11 00:00:00", true},
		{"45118.5", "2023-07-11 12:00:00", true},
		{"1.25", "1899-12-31 06:00:00", true},
		{"45118.999999", "2023-07-11 23:59:59", true},
		{"-1", "", false},
		{"abc", "", false},
		{"99999999", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := FromSerial(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Format(OutputLayout))
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Normalize Tests
// ----------------------------------------------------------------------------

func TestNormalize_ChineseTemplate(t *testing.T) {
	n := mustNormalizer(t, Rule{Format: "%Y年%m月%d日", Pattern: `^\d{4}年\d{1,2}月\d{1,2}日$`})

	got := n.NormalizeValue("2024年1月2日")
	assert.True(t, got.Resolved)
	assert.Equal(t, "2024-01-02 00:00:00", got.Value)
}

func TestNormalize_SerialRule(t *testing.T) {
	n := mustNormalizer(t, Rule{Name: "excel_serial", Serial: true, Pattern: `^\d{1,5}(\.\d+)?$`})

	got := n.Normalize([]string{"45118", "45118.5"})
	assert.Equal(t, []Result{
		{Value: "2023-07-11 00:00:00", Resolved: true},
		{Value: "2023-07-11 12:00:00", Resolved: true},
	}, got)
}

func TestNormalize_Unresolved(t *testing.T) {
	n := mustNormalizer(t, DefaultRules()...)

	for _, v := range []string{"invalid", "", "   ", "abc-xyz"} {
		assert.False(t, n.NormalizeValue(v).Resolved, v)
	}
}

func TestNormalize_FirstRuleWins(t *testing.T) {
	n := mustNormalizer(t,
		Rule{Format: "%Y%m%d", Pattern: `^\d{8}$`},
		Rule{Format: "%Y%d%m", Pattern: `^\d{8}$`},
	)

	assert.Equal(t, "2024-01-02 00:00:00", n.NormalizeValue("20240102").Value)
}

func TestNormalize_TemplateFailureFallsThrough(t *testing.T) {
	n := mustNormalizer(t,
		Rule{Format: "%Y%m%d", Pattern: `^\d{8}$`},
		Rule{Format: "%Y%d%m", Pattern: `^\d{8}$`},
	)

	got := n.NormalizeValue("20241301")
	assert.True(t, got.Resolved)
	assert.Equal(t, "2024-01-13 00:00:00", got.Value)
}

func TestNormalize_PatternIsAnchored(t *testing.T) {
	n := mustNormalizer(t, Rule{Format: "%Y%m%d", Pattern: `\d{8}`})

	got := n.NormalizeValue("x20240102")
	assert.False(t, got.Resolved)
}

func TestNormalize_DefaultRules(t *testing.T) {
	n := mustNormalizer(t, DefaultRules()...)

	tests := []struct {
		in   string
		want string
	}{
		{"20240102", "2024-01-02 00:00:00"},
		{"2024.1.4", "2024-01-04 00:00:00"},
		{"2024. 1. 4", "2024-01-04 00:00:00"},
		{"2024/12/31", "2024-12-31 00:00:00"},
		{"2024年1月2号", "2024-01-02 00:00:00"},
		{"2023年2月", "2023-02-01 00:00:00"},
		{"202301", "2023-01-01 00:00:00"},
		{"2023-1", "2023-01-01 00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := n.NormalizeValue(tt.in)
			assert.True(t, got.Resolved)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}

func TestNormalize_AutoParseFallback(t *testing.T) {
	n := mustNormalizer(t, Rule{Format: "%Y%m%d", Pattern: `^\d{8}$`})

	got := n.NormalizeValue("2023-01-02T15:04:05Z")
	assert.True(t, got.Resolved)
	assert.Equal(t, "2023-01-02 15:04:05", got.Value)

	for _, v := range []string{"3/4", "Mar 4", "12.5"} {
		t.Run(v, func(t *testing.T) {
			got := n.NormalizeValue(v)
			assert.False(t, got.Resolved, "year-less %q resolved to %q", v, got.Value)
		})
	}
}

func TestNormalize_BareSerialFallback(t *testing.T) {
	n := mustNormalizer(t, Rule{Format: "%Y%m%d", Pattern: `^\d{8}$`})

	got := n.NormalizeValue("45118.0")
	assert.True(t, got.Resolved)
	assert.Equal(t, "2023-07-11 00:00:00", got.Value)
}

func TestNormalize_KeepsTimeOfDay(t *testing.T) {
	n := mustNormalizer(t, Rule{Format: "%Y/%m/%d %H:%M:%S", Pattern: `^\d{4}/\d{1,2}/\d{1,2} \d{1,2}:\d{2}:\d{2}$`})

	got := n.NormalizeValue("2024/ 1/ 2 23:30:31")
	assert.Equal(t, Result{Value: "2024-01-02 23:30:31", Resolved: true}, got)
}

func TestNormalize_PreservesOrder(t *testing.T) {
	n := mustNormalizer(t, DefaultRules()...)

	got := n.Normalize([]string{"invalid", "20240102", "", "2024.1.4"})
	require.Len(t, got, 4)
	assert.False(t, got[0].Resolved)
	assert.Equal(t, "2024-01-02 00:00:00", got[1].Value)
	assert.False(t, got[2].Resolved)
	assert.Equal(t, "2024-01-04 00:00:00", got[3].Value)
}

func TestNewNormalizer_Errors(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"empty pattern", Rule{Format: "%Y"}},
		{"bad regex", Rule{Format: "%Y", Pattern: `(`}},
		{"bad template", Rule{Format: "%Q", Pattern: `x`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNormalizer([]Rule{tt.rule})
			assert.Error(t, err)
		})
	}
}
