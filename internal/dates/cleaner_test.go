package dates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

func testRules() []Rule {
	return []Rule{
		{Name: "excel_serial", Serial: true, Pattern: `^\d{1,5}(\.0)?$`},
		{Name: "dot_separated", Format: "%Y.%m.%d", Pattern: `^\d{4}\.\d{1,2}\.\d{1,2}$`},
		{Name: "standard_slash", Format: "%Y/%m/%d", Pattern: `^\d{4}/\d{1,2}/\d{1,2}$`},
		{Name: "iso_date", Format: "%Y-%m-%d", Pattern: `^\d{4}-\d{1,2}-\d{1,2}$`},
	}
}

func testFields() []FieldConfig {
	return []FieldConfig{
		{Name: "创建时间", Aliases: []string{"创建时间"}, HasTime: true},
		{Name: "结算日期", Aliases: []string{"结算日期"}, HasTime: false},
	}
}

func ordersTable() *tabular.Table {
	return &tabular.Table{
		Headers: []string{"运单号", "创建时间", "结算日期", "金额"},
		Rows: [][]string{
			{"001", "2024.1.1", "2024.1.4", "100"},
			{"002", "2024/1/2", "invalid", "200"},
			{"003", "invalid", "2024/1/6", "300"},
			{"004", "2024/1/4", "2024-01-07", "400"},
		},
	}
}

func mustCleaner(t *testing.T, fields []FieldConfig, opts Options) *Cleaner {
	t.Helper()
	c, err := NewCleaner(testRules(), fields, opts)
	require.NoError(t, err)
	return c
}

func TestCleanTable_DropRow(t *testing.T) {
	table := ordersTable()
	stats := mustCleaner(t, testFields(), Options{OnParseFailure: DropRow}).CleanTable(table, nil)

	assert.Equal(t, 2, stats.DroppedRows)
	assert.Equal(t, [][]string{
		{"001", "2024-01-01 00:00:00", "2024-01-04", "100"},
		{"004", "2024-01-04 00:00:00", "2024-01-07", "400"},
	}, table.Rows)
}

func TestCleanTable_DropRowAllFail(t *testing.T) {
	table := &tabular.Table{
		Headers: []string{"运单号", "创建时间", "结算日期"},
		Rows: [][]string{
			{"001", "invalid1", "invalid3"},
			{"002", "invalid2", "invalid4"},
		},
	}
	mustCleaner(t, testFields(), Options{OnParseFailure: DropRow}).CleanTable(table, nil)

	assert.Empty(t, table.Rows)
	assert.Equal(t, []string{"运单号", "创建时间", "结算日期"}, table.Headers)
}

func TestCleanTable_SetNull(t *testing.T) {
	table := ordersTable()
	stats := mustCleaner(t, testFields(), Options{OnParseFailure: SetNull}).CleanTable(table, nil)

	require.Len(t, table.Rows, 4)
	assert.Equal(t, "", table.Rows[1][2])
	assert.Equal(t, "", table.Rows[2][1])
	assert.Equal(t, "2024-01-01 00:00:00", table.Rows[0][1])

	require.Len(t, stats.Columns, 2)
	assert.Equal(t, ColumnStats{Field: "创建时间", Column: "创建时间", Resolved: 3, Failed: 1}, stats.Columns[0])
}

func TestCleanTable_SetNullYearless(t *testing.T) {
	table := &tabular.Table{
		Headers: []string{"运单号", "结算日期"},
		Rows: [][]string{
			{"001", "12.5"},
			{"002", "3/4"},
			{"003", "2024/1/6"},
		},
	}
	stats := mustCleaner(t, testFields(), Options{OnParseFailure: SetNull}).CleanTable(table, nil)

	assert.Equal(t, [][]string{
		{"001", ""},
		{"002", ""},
		{"003", "2024-01-06"},
	}, table.Rows)
	require.Len(t, stats.Columns, 1)
	assert.Equal(t, 2, stats.Columns[0].Failed)
}

func TestCleanTable_KeepOriginal(t *testing.T) {
	table := ordersTable()
	mustCleaner(t, testFields(), Options{}).CleanTable(table, nil)

	require.Len(t, table.Rows, 4)
	assert.Equal(t, "invalid", table.Rows[1][2])
	assert.Equal(t, "invalid", table.Rows[2][1])
	assert.Equal(t, "2024-01-06", table.Rows[2][2])
}

func TestCleanTable_AddColumn(t *testing.T) {
	table := ordersTable()
	mustCleaner(t, testFields(), Options{OutputMode: AddColumn, OnParseFailure: SetNull}).CleanTable(table, nil)

	assert.Equal(t, []string{"运单号", "创建时间", "结算日期", "金额", "创建时间_cleaned", "结算日期_cleaned"}, table.Headers)
	assert.Equal(t, "2024.1.1", table.Rows[0][1], "source column is untouched")
	assert.Equal(t, "2024-01-01 00:00:00", table.Rows[0][4])
	assert.Equal(t, "", table.Rows[1][5])
}

func TestCleanTable_ColumnsFilter(t *testing.T) {
	table := ordersTable()
	stats := mustCleaner(t, testFields(), Options{}).CleanTable(table, []string{" 结算日期 "})

	require.Len(t, stats.Columns, 1)
	assert.Equal(t, "结算日期", stats.Columns[0].Column)
	assert.Equal(t, "2024.1.1", table.Rows[0][1])
	assert.Equal(t, "2024-01-04", table.Rows[0][2])
}

func TestCleanTable_MissingField(t *testing.T) {
	table := &tabular.Table{
		Headers: []string{"运单号", "其他列"},
		Rows:    [][]string{{"001", "A"}, {"002", "B"}},
	}
	fields := []FieldConfig{{Name: "不存在的字段", Aliases: []string{"不存在"}, HasTime: true}}

	stats := mustCleaner(t, fields, Options{OnParseFailure: DropRow}).CleanTable(table, nil)

	assert.Equal(t, []string{"不存在的字段"}, stats.Missing)
	assert.Len(t, table.Rows, 2)
}

func TestCleanTable_AliasAndEmptyCells(t *testing.T) {
	table := &tabular.Table{
		Headers: []string{"\ufeff下单时间"},
		Rows:    [][]string{{"45118"}, {""}, {"45118.0"}},
	}
	fields := []FieldConfig{{Name: "创建时间", Aliases: []string{"下单时间"}, HasTime: true}}

	stats := mustCleaner(t, fields, Options{OnParseFailure: DropRow}).CleanTable(table, nil)

	assert.Zero(t, stats.DroppedRows, "blank cells are not parse failures")
	assert.Equal(t, [][]string{
		{"2023-07-11 00:00:00"},
		{""},
		{"2023-07-11 00:00:00"},
	}, table.Rows)
}

func TestNewCleaner_InvalidOptions(t *testing.T) {
	_, err := NewCleaner(nil, nil, Options{OnParseFailure: "explode"})
	assert.Error(t, err)

	_, err = NewCleaner(nil, nil, Options{OutputMode: "sideways"})
	assert.Error(t, err)
}

// ----------------------------------------------------------------------------
// File Tests
// ----------------------------------------------------------------------------

func TestCleanFile_InPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merge_cleaned.csv")
	require.NoError(t, os.WriteFile(path, []byte("运单号,结算日期\n001,2024.1.4\n002,2024/12/31\n"), 0o644))

	c := mustCleaner(t, testFields(), Options{OnParseFailure: DropRow})
	stats, err := c.CleanFile(path, path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rows)
	assert.Equal(t, []string{"创建时间"}, stats.Missing)

	table, err := tabular.ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"001", "2024-01-04"}, {"002", "2024-12-31"}}, table.Rows)
}

func TestCleanFile_HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(in, []byte("运单号,结算日期\n"), 0o644))

	out := filepath.Join(dir, "out", "out.csv")
	_, err := mustCleaner(t, testFields(), Options{OnParseFailure: DropRow}).CleanFile(in, out, nil)
	require.NoError(t, err)

	table, err := tabular.ReadCSV(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"运单号", "结算日期"}, table.Headers)
	assert.Empty(t, table.Rows)
}

func TestCleanFile_MissingInput(t *testing.T) {
	_, err := mustCleaner(t, testFields(), Options{}).CleanFile(filepath.Join(t.TempDir(), "nope.csv"), "x.csv", nil)
	assert.Error(t, err)
}

func TestCleanFolder(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.csv"), []byte("结算日期\n2024.1.4\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "b.csv"), []byte("结算日期\n20240105\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "skip.txt"), []byte("x"), 0o644))

	all, err := mustCleaner(t, testFields(), Options{}).CleanFolder(context.Background(), in, out, nil, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	table, err := tabular.ReadCSV(filepath.Join(out, "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"2024-01-05"}}, table.Rows)
}
