package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "merge_cleaned.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// ---- ColumnNames Tests ----

func TestColumnNames(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"plain", []string{"运单号", "创建时间"}, []string{"运单号", "创建时间"}},
		{"bom and spaces", []string{"\ufeff运单号 ", " 状态"}, []string{"运单号", "状态"}},
		{"blank", []string{"a", "", "c"}, []string{"a", "column_2", "c"}},
		{"duplicates", []string{"a", "a", "a"}, []string{"a", "a_1", "a_2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ColumnNames(tt.in))
		})
	}
}

func TestCreateTableSQL(t *testing.T) {
	got := CreateTableSQL(TableIdentifier("public.orders"), []string{"运单号", `we"ird`})
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "public"."orders" ("运单号" text, "we""ird" text)`, got)
}

// ---- LoadCSV Tests ----

func TestLoadCSV(t *testing.T) {
	t.Run("Should create table and copy rows", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		path := writeCSV(t, "\ufeff运单号,创建时间,source\nSF1,2024-01-01,a.csv\nSF2,,b.csv\n")

		mockPool.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "refined_orders" ("运单号" text, "创建时间" text, "source" text)`)).
			WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
		mockPool.ExpectCopyFrom(pgx.Identifier{"refined_orders"}, []string{"运单号", "创建时间", "source"}).
			WillReturnResult(2)

		n, err := LoadCSV(context.Background(), mockPool, path, "refined_orders")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should stop when table creation fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		path := writeCSV(t, "a\n1\n")
		mockPool.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

		_, err = LoadCSV(context.Background(), mockPool, path, "t")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should wrap copy errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		path := writeCSV(t, "a\n1\n")
		mockPool.ExpectExec("CREATE TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
		mockPool.ExpectCopyFrom(pgx.Identifier{"s", "t"}, []string{"a"}).WillReturnError(errors.New("disk full"))

		_, err = LoadCSV(context.Background(), mockPool, path, "s.t")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "copy into s.t")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should reject a file without columns", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		path := writeCSV(t, "")
		_, err = LoadCSV(context.Background(), mockPool, path, "t")
		assert.ErrorIs(t, err, ErrNoColumns)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report a missing file", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		_, err = LoadCSV(context.Background(), mockPool, filepath.Join(t.TempDir(), "none.csv"), "t")
		assert.Error(t, err)
	})
}
