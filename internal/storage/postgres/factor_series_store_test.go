package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
)

func testSeries(keys ...int) *domain.FactorSeries {
	s := &domain.FactorSeries{SecurityID: "600000", SourcePath: "/data/factors/600000.SH.csv"}
	for _, k := range keys {
		d, _ := domain.DateFromKey(k)
		s.Records = append(s.Records, domain.DailyFactorRecord{
			TradingDate: d, DateKey: k, Close: 10, CloseAdjusted: 9.5, AdjustFactor: 0.95,
		})
	}
	return s
}

func TestFactorSeriesStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFactorSeriesStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertSeries(ctx, "run-1", testSeries(20230104, 20230103)))

	got, err := store.GetBySecurity(ctx, "run-1", "600000")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 20230103, got[0].DateKey)
	assert.Equal(t, 2023, got[0].TradingDate.Year())
	assert.Equal(t, 0.95, got[1].AdjustFactor)
}

func TestFactorSeriesStore_DuplicateRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFactorSeriesStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertSeries(ctx, "run-1", testSeries(20230103)))

	err := store.InsertSeries(ctx, "run-1", testSeries(20230105, 20230103))
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)

	got, err := store.GetBySecurity(ctx, "run-1", "600000")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
