package clickhouse

import (
	"context"
	"fmt"
	"time"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
)

// DailyFactorStore implements storage.FactorSeriesStore on daily_adjust_factors.
type DailyFactorStore struct {
	conn *Conn
}

// NewDailyFactorStore creates a new DailyFactorStore.
func NewDailyFactorStore(conn *Conn) *DailyFactorStore {
	return &DailyFactorStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FactorSeriesStore = (*DailyFactorStore)(nil)

// InsertSeries adds the records of one series. Fails the whole series on any duplicate date.
func (s *DailyFactorStore) InsertSeries(ctx context.Context, runID string, series *domain.FactorSeries) error {
	if runID == "" || series == nil || series.SecurityID == "" {
		return storage.ErrInvalidInput
	}
	if series.Empty() {
		return nil
	}

	existing, err := s.dateKeys(ctx, runID, series.SecurityID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, r := range series.Records {
		if _, dup := existing[r.DateKey]; dup {
			return storage.ErrDuplicateKey
		}
		existing[r.DateKey] = struct{}{}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_adjust_factors (
			run_id, security_id, trading_date, date_key, close, close_qfq, adjust_factor
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range series.Records {
		err = batch.Append(
			runID, series.SecurityID, r.TradingDate, uint32(r.DateKey),
			r.Close, r.CloseAdjusted, r.AdjustFactor,
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

// GetBySecurity retrieves the records of one security for one run, ordered by date ASC.
func (s *DailyFactorStore) GetBySecurity(ctx context.Context, runID, securityID string) ([]domain.DailyFactorRecord, error) {
	query := `
		SELECT trading_date, date_key, close, close_qfq, adjust_factor
		FROM daily_adjust_factors FINAL
		WHERE run_id = ? AND security_id = ?
		ORDER BY date_key ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, securityID)
	if err != nil {
		return nil, fmt.Errorf("query by security: %w", err)
	}
	defer rows.Close()

	var records []domain.DailyFactorRecord
	for rows.Next() {
		var (
			r       domain.DailyFactorRecord
			date    time.Time
			dateKey uint32
		)
		if err := rows.Scan(&date, &dateKey, &r.Close, &r.CloseAdjusted, &r.AdjustFactor); err != nil {
			return nil, fmt.Errorf("scan daily factor row: %w", err)
		}
		r.TradingDate = date.UTC()
		r.DateKey = int(dateKey)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily factor rows: %w", err)
	}
	return records, nil
}

func (s *DailyFactorStore) dateKeys(ctx context.Context, runID, securityID string) (map[int]struct{}, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT date_key FROM daily_adjust_factors
		WHERE run_id = ? AND security_id = ?
	`, runID, securityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[int]struct{})
	for rows.Next() {
		var k uint32
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys[int(k)] = struct{}{}
	}
	return keys, rows.Err()
}
