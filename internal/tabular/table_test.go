package tabular

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "运单号", NormalizeName("\ufeff 运单号 "))
	assert.Equal(t, "mailno", NormalizeName("MailNo"))
}

func TestResolveColumn(t *testing.T) {
	table := &Table{Headers: []string{"\ufeffOrder ID", "下单时间", "金额"}}

	tests := []struct {
		name      string
		preferred string
		aliases   []string
		want      int
	}{
		{"preferred match", "order id", nil, 0},
		{"alias match", "创建时间", []string{"下单时间"}, 1},
		{"first alias wins", "x", []string{"金额", "下单时间"}, 2},
		{"none", "x", []string{"y"}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.ResolveColumn(tt.preferred, tt.aliases))
		})
	}
}

func TestTableMutations(t *testing.T) {
	table := &Table{
		Headers: []string{"a", "b"},
		Rows:    [][]string{{"1", "2"}, {"3", "4"}, {"5", "6"}},
	}

	assert.Equal(t, []string{"2", "4", "6"}, table.Column(1))

	table.SetColumn(0, []string{"x", "y", "z"})
	table.AddColumn("c", []string{"7", "8", "9"})
	table.AddColumn("b", []string{"p", "q", "r"})
	table.Filter([]bool{true, false, true})

	assert.Equal(t, []string{"a", "b", "c"}, table.Headers)
	assert.Equal(t, [][]string{{"x", "p", "7"}, {"z", "r", "9"}}, table.Rows)
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  SF123  ", "SF123"},
		{`="000123"`, "000123"},
		{`=""`, ""},
		{`="`, `="`},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanCell(tt.in), tt.in)
	}
}

// ----------------------------------------------------------------------------
// CSV Tests
// ----------------------------------------------------------------------------

func TestParse(t *testing.T) {
	input := "\ufeffa,b,c\n1,2\n3,4,5,6\n\"x, y\",z,\n"

	table, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, table.Headers)
	assert.Equal(t, [][]string{
		{"1", "2", ""},
		{"3", "4", "5"},
		{"x, y", "z", ""},
	}, table.Rows)
}

func TestParse_Empty(t *testing.T) {
	table, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, table.Headers)
	assert.Empty(t, table.Rows)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	want := &Table{
		Headers: []string{"运单号", "备注"},
		Rows:    [][]string{{"SF1", "含,逗号"}, {"SF2", "含\"引号\""}},
	}

	require.NoError(t, WriteCSV(path, want, WriteOptions{BOM: true}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, BOM))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWrite_NoBOMEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &Table{}, WriteOptions{}))
	assert.Zero(t, buf.Len())
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.CSV", "c.xlsx", "d.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	files, err := ListFiles(dir, ".csv", ".xlsx")
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"a.CSV", "b.csv", "c.xlsx"}, names)
}
