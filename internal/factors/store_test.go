package factors

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/logging"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const singleSecurityCSV = "ts_code,trade_date,close,close_qfq\n" +
	"600000.SH,20230104,10.00,9.50\n" +
	"600000.SH,20230103,10.00,9.50\n" +
	"600000.SH,20230105,10.00,10.00\n"

func TestResolve_NamingOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "600000_adj.parquet", "")
	want := writeFile(t, dir, "600000.csv", singleSecurityCSV)

	store := NewStore(Options{Dir: dir})
	got, err := store.Resolve("600000")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_SharedFile(t *testing.T) {
	dir := t.TempDir()
	want := writeFile(t, dir, "all_factors.csv", singleSecurityCSV)
	writeFile(t, dir, "README.txt", "not a factor file")

	store := NewStore(Options{Dir: dir})
	got, err := store.Resolve("600000")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_AmbiguousIsNotFound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", singleSecurityCSV)
	writeFile(t, dir, "b.csv", singleSecurityCSV)

	store := NewStore(Options{Dir: dir})
	_, err := store.Resolve("600000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_ComputesSortedFactors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "600000.csv", singleSecurityCSV)

	store := NewStore(Options{Dir: dir})
	series, err := store.Load(context.Background(), "600000")
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())

	assert.Equal(t, 20230103, series.Records[0].DateKey)
	assert.InDelta(t, 0.95, series.Records[0].AdjustFactor, 1e-12)
	assert.InDelta(t, 1.0, series.Records[2].AdjustFactor, 1e-12)

	// 0.95 -> 1.0 is an increase
	require.Len(t, series.Anomalies, 1)
	assert.Contains(t, series.Anomalies[0], "increases")
}

func TestLoad_SynonymHeaders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "000001.csv", " 股票代码 ,交易日期,收盘价,前复权收盘价\n"+
		"000001.SZ,20230103,12.00,6.00\n")

	store := NewStore(Options{Dir: dir})
	series, err := store.Load(context.Background(), "000001")
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	assert.InDelta(t, 0.5, series.Records[0].AdjustFactor, 1e-12)
}

func TestLoad_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "600000.csv", "ts_code,trade_date,close\n600000.SH,20230103,10\n")

	store := NewStore(Options{Dir: dir})
	_, err := store.Load(context.Background(), "600000")
	require.ErrorIs(t, err, ErrSchema)
}

func TestLoad_SharedFileCodeVariants(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared.csv", "ts_code,trade_date,close,close_qfq\n"+
		"600000,20230103,10,1\n"+
		"600000.SZ,20230103,10,2\n"+
		"000001.SH,20230103,10,3\n")

	store := NewStore(Options{Dir: dir})
	series, err := store.Load(context.Background(), "600000")
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	// .SZ is tried before the bare code
	assert.InDelta(t, 0.2, series.Records[0].AdjustFactor, 1e-12)

	_, err = store.Load(context.Background(), "399001")
	require.ErrorIs(t, err, ErrEmptyData)
}

func TestLoad_SharedFileOfAnotherSecurityWarns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "600000.csv", singleSecurityCSV)

	var buf bytes.Buffer
	store := NewStore(Options{Dir: dir, Logger: logging.NewWriter(&buf, "debug", "json")})

	series, err := store.Load(context.Background(), "000001")
	require.NoError(t, err)
	assert.Equal(t, 3, series.Len())
	assert.Contains(t, buf.String(), "factor file holds a different security code")
	assert.Contains(t, buf.String(), `"code":"600000.SH"`)

	buf.Reset()
	_, err = store.Load(context.Background(), "600000")
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "different security code")
}

func TestLoad_BareCodeWithLeadingZeros(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared.csv", "ts_code,trade_date,close,close_qfq\n"+
		"000001,20230103,10,4\n"+
		"000002,20230103,10,5\n")

	store := NewStore(Options{Dir: dir})
	series, err := store.Load(context.Background(), "000001")
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	assert.InDelta(t, 0.4, series.Records[0].AdjustFactor, 1e-12)
}

func TestLoad_DropsInvalidAndDuplicateRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "600000.csv", "ts_code,trade_date,close,close_qfq\n"+
		"600000.SH,notadate,10,9\n"+
		"600000.SH,20230103,0,9\n"+
		"600000.SH,20230104,10,9\n"+
		"600000.SH,20230104,10,8\n")

	store := NewStore(Options{Dir: dir})
	series, err := store.Load(context.Background(), "600000")
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	assert.InDelta(t, 0.9, series.Records[0].AdjustFactor, 1e-12)
}

func TestGetFactors_FiltersAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "600000.csv", singleSecurityCSV)

	store := NewStore(Options{Dir: dir})
	ctx := context.Background()

	first, err := store.GetFactors(ctx, "600000", 20230104, 20230105)
	require.NoError(t, err)
	require.Equal(t, 2, first.Len())
	assert.False(t, first.Fallback)

	second, err := store.GetFactors(ctx, "600000", 20230104, 20230105)
	require.NoError(t, err)
	assert.Same(t, first, second)

	stats := store.Cache().Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestGetFactors_FallbackToFullSeries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "600000.csv", singleSecurityCSV)

	store := NewStore(Options{Dir: dir})
	series, err := store.GetFactors(context.Background(), "600000", 20240101, 20240131)
	require.NoError(t, err)
	assert.True(t, series.Fallback)
	assert.Equal(t, 3, series.Len())
}

func TestGetFactors_ErrorsAreNotCached(t *testing.T) {
	store := NewStore(Options{Dir: t.TempDir()})
	_, err := store.GetFactors(context.Background(), "600000", 20230101, 20230131)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Cache().Stats().Entries)
}

func TestCheckSanity(t *testing.T) {
	records := []domain.DailyFactorRecord{
		{DateKey: 20230103, AdjustFactor: 0.05},
		{DateKey: 20230104, AdjustFactor: 1.2},
		{DateKey: 20230105, AdjustFactor: 1.0},
	}
	flags := CheckSanity(records)
	if len(flags) != 3 {
		t.Fatalf("Expected 3 flags, got %d: %v", len(flags), flags)
	}

	clean := []domain.DailyFactorRecord{
		{DateKey: 20230103, AdjustFactor: 0.9},
		{DateKey: 20230104, AdjustFactor: 0.9},
		{DateKey: 20230105, AdjustFactor: 1.0},
	}
	if flags := CheckSanity(clean[:2]); len(flags) != 0 {
		t.Errorf("Expected no flags, got %v", flags)
	}
}
