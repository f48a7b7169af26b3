package postgres

import (
	"context"
	"fmt"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/storage"
)

// FactorSeriesStore implements storage.FactorSeriesStore using PostgreSQL.
type FactorSeriesStore struct {
	pool *Pool
}

// NewFactorSeriesStore creates a new FactorSeriesStore.
func NewFactorSeriesStore(pool *Pool) *FactorSeriesStore {
	return &FactorSeriesStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FactorSeriesStore = (*FactorSeriesStore)(nil)

// InsertSeries adds the records of one series atomically. Fails the whole series on any duplicate date.
func (s *FactorSeriesStore) InsertSeries(ctx context.Context, runID string, series *domain.FactorSeries) error {
	if runID == "" || series == nil || series.SecurityID == "" {
		return storage.ErrInvalidInput
	}
	if series.Empty() {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO factor_series (
			run_id, security_id, date_key, trade_date, close, close_qfq, adjust_factor, source_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, r := range series.Records {
		_, err := tx.Exec(ctx, query,
			runID, series.SecurityID, r.DateKey, r.TradingDate,
			r.Close, r.CloseAdjusted, r.AdjustFactor, series.SourcePath,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert factor record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySecurity retrieves the records of one security for one run, ordered by date ASC.
func (s *FactorSeriesStore) GetBySecurity(ctx context.Context, runID, securityID string) ([]domain.DailyFactorRecord, error) {
	query := `
		SELECT date_key, trade_date, close, close_qfq, adjust_factor
		FROM factor_series
		WHERE run_id = $1 AND security_id = $2
		ORDER BY date_key ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, securityID)
	if err != nil {
		return nil, fmt.Errorf("query factor series: %w", err)
	}
	defer rows.Close()

	var records []domain.DailyFactorRecord
	for rows.Next() {
		var r domain.DailyFactorRecord
		if err := rows.Scan(&r.DateKey, &r.TradingDate, &r.Close, &r.CloseAdjusted, &r.AdjustFactor); err != nil {
			return nil, fmt.Errorf("scan factor record: %w", err)
		}
		r.TradingDate = r.TradingDate.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factor records: %w", err)
	}
	return records, nil
}
