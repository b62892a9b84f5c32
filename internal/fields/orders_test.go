package fields

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/datarefinery/internal/tabular"
)

func boolPtr(b bool) *bool { return &b }

func TestCleanOrderValue(t *testing.T) {
	assert.Equal(t, "1234567890", CleanOrderValue(" 1234567890.0 "))
	assert.Equal(t, "12.05", CleanOrderValue("12.05"))
	assert.Equal(t, "SF1", CleanOrderValue("SF1"))
}

func TestCleanOrderTable(t *testing.T) {
	newTable := func() *tabular.Table {
		return &tabular.Table{
			Headers: []string{"快递单号", "金额"},
			Rows: [][]string{
				{" SF1234567890 ", "1"},
				{"773012345678.0", "2"},
				{"短", "3"},
				{"无效单号无效单号无效单号", "4"},
				{"AB!1234567890", "5"},
			},
		}
	}
	rule := OrderRule{
		Name:           "运单号",
		Aliases:        []string{"快递单号"},
		MinLength:      10,
		MaxLength:      20,
		AllowChinese:   boolPtr(false),
		AllowedPattern: `[A-Za-z0-9]+$`,
	}

	t.Run("replace", func(t *testing.T) {
		table := newTable()
		dropped, err := CleanOrderTable(table, OrderCleanConfig{Fields: []OrderRule{rule}})
		require.NoError(t, err)

		assert.Equal(t, 3, dropped)
		assert.Equal(t, [][]string{{"SF1234567890", "1"}, {"773012345678", "2"}}, table.Rows)
	})

	t.Run("add column", func(t *testing.T) {
		table := newTable()
		dropped, err := CleanOrderTable(table, OrderCleanConfig{OutputMode: "add_column", Fields: []OrderRule{rule}})
		require.NoError(t, err)

		assert.Zero(t, dropped)
		assert.Equal(t, []string{"快递单号", "金额", "运单号_cleaned"}, table.Headers)
		assert.Equal(t, "773012345678", table.Rows[1][2])
		assert.Equal(t, "773012345678.0", table.Rows[1][0])
	})

	t.Run("missing column is skipped", func(t *testing.T) {
		table := newTable()
		dropped, err := CleanOrderTable(table, OrderCleanConfig{Fields: []OrderRule{{Name: "nope"}}})
		require.NoError(t, err)
		assert.Zero(t, dropped)
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := CleanOrderTable(newTable(), OrderCleanConfig{Fields: []OrderRule{{Name: "快递单号", AllowedPattern: "("}}})
		assert.Error(t, err)
	})
}

func TestCleanOrders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merge.csv")
	writeFile(t, path, "运单号,source\nSF1234567890,a.csv\nx,b.csv\n")

	outs, err := CleanOrders(path, OrderCleanConfig{Fields: []OrderRule{{Name: "运单号", MinLength: 5}}})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "merge_cleaned.csv")}, outs)

	table := readTable(t, outs[0])
	assert.Equal(t, [][]string{{"SF1234567890", "a.csv"}}, table.Rows)

	_, err = os.Stat(path)
	assert.NoError(t, err, "input is left in place")
}

func TestCleanOrders_NotCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.txt")
	writeFile(t, path, "a")

	_, err := CleanOrders(path, OrderCleanConfig{})
	assert.Error(t, err)
}
