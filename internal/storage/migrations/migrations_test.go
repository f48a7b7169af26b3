package migrations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLFiles_Embedded(t *testing.T) {
	pg, err := sqlFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"postgres/001_adjustment_outcomes.sql", "postgres/002_factor_series.sql"}, pg)

	ch, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	assert.Equal(t, []string{"clickhouse/001_adjusted_ticks.sql", "clickhouse/002_daily_adjust_factors.sql"}, ch)
}

func TestSplitStatements(t *testing.T) {
	in := "-- header\nCREATE TABLE a (x UInt8);\n\nCREATE TABLE b (y UInt8)\nENGINE = Memory;\n"
	got := splitStatements(in)
	require.Len(t, got, 2)
	assert.Equal(t, "CREATE TABLE a (x UInt8)", got[0])
	assert.Equal(t, "CREATE TABLE b (y UInt8)\nENGINE = Memory", got[1])
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'it''s'; SELECT 1;"))

	err := validateNoSemicolonInStrings("SELECT 'a;b'")
	if !errors.Is(err, errSemicolonInString) {
		t.Errorf("Expected errSemicolonInString, got %v", err)
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/ticks")
	require.NoError(t, err)
	assert.Equal(t, "ticks", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedClickhouseFilesSplitCleanly(t *testing.T) {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	for _, f := range files {
		data, err := ClickhouseFS.ReadFile(f)
		require.NoError(t, err)
		assert.NoError(t, validateNoSemicolonInStrings(string(data)), f)
		assert.Len(t, splitStatements(string(data)), 1, f)
	}
}
