package clickhouse

import (
	"context"
	"fmt"
	"time"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
	"tick-adjust-lab/internal/tabular"
)

// epochDate stands in for rows whose trading date could not be parsed.
var epochDate = time.Unix(0, 0).UTC()

// AdjustedTickStore implements storage.AdjustedTickStore using ClickHouse.
type AdjustedTickStore struct {
	conn *Conn
}

// NewAdjustedTickStore creates a new AdjustedTickStore.
func NewAdjustedTickStore(conn *Conn) *AdjustedTickStore {
	return &AdjustedTickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AdjustedTickStore = (*AdjustedTickStore)(nil)

// InsertBulk adds the ticks of one security in a single batch.
// Returns ErrDuplicateKey if (run_id, security_id) already has rows.
func (s *AdjustedTickStore) InsertBulk(ctx context.Context, runID, securityID string, ticks []domain.AdjustedTick) error {
	if runID == "" || securityID == "" {
		return storage.ErrInvalidInput
	}
	if len(ticks) == 0 {
		return nil
	}

	exists, err := s.exists(ctx, runID, securityID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO adjusted_ticks (
			run_id, security_id, row_index, trading_date, date_key, date_valid,
			tick_time, adjust_factor, fill_method, prices, raw_prices, quantities
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, t := range ticks {
		tradingDate := epochDate
		valid := uint8(0)
		if t.DateValid {
			tradingDate = t.TradingDay
			valid = 1
		}
		err = batch.Append(
			runID, securityID, uint32(i), tradingDate, uint32(t.DateKey), valid,
			t.TickTime.Text(), t.AdjustFactor, string(t.Fill),
			nonNil(t.Prices), nonNil(t.Raw), nonNil(t.Quantities),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySecurity retrieves the ticks of one security for one run, in row order.
// Tick times come back as text; key and passthrough columns are not stored.
func (s *AdjustedTickStore) GetBySecurity(ctx context.Context, runID, securityID string) ([]domain.AdjustedTick, error) {
	query := `
		SELECT security_id, trading_date, date_key, date_valid, tick_time,
			adjust_factor, fill_method, prices, raw_prices, quantities
		FROM adjusted_ticks
		WHERE run_id = ? AND security_id = ?
		ORDER BY row_index ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, securityID)
	if err != nil {
		return nil, fmt.Errorf("query by security: %w", err)
	}
	defer rows.Close()

	return scanAdjustedTicks(rows)
}

// CountBySecurity returns the number of stored ticks of one security for one run.
func (s *AdjustedTickStore) CountBySecurity(ctx context.Context, runID, securityID string) (int, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM adjusted_ticks
		WHERE run_id = ? AND security_id = ?
	`, runID, securityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by security: %w", err)
	}
	return int(count), nil
}

func (s *AdjustedTickStore) exists(ctx context.Context, runID, securityID string) (bool, error) {
	n, err := s.CountBySecurity(ctx, runID, securityID)
	return n > 0, err
}

func scanAdjustedTicks(rows chRows) ([]domain.AdjustedTick, error) {
	var ticks []domain.AdjustedTick

	for rows.Next() {
		var (
			t          domain.AdjustedTick
			tradingDay time.Time
			dateKey    uint32
			valid      uint8
			tickTime   string
			fill       string
		)
		err := rows.Scan(
			&t.SecurityID, &tradingDay, &dateKey, &valid, &tickTime,
			&t.AdjustFactor, &fill, &t.Prices, &t.Raw, &t.Quantities,
		)
		if err != nil {
			return nil, fmt.Errorf("scan adjusted tick row: %w", err)
		}

		t.DateValid = valid == 1
		if t.DateValid {
			t.TradingDay = tradingDay.UTC()
			t.DateKey = int(dateKey)
		}
		if tickTime != "" {
			t.TickTime = tabular.String(tickTime)
		}
		t.Fill = domain.FillMethod(fill)
		ticks = append(ticks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjusted tick rows: %w", err)
	}
	return ticks, nil
}

func nonNil(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
