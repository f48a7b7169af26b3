// Package merge joins ticks to the daily factor of their trading date.
package merge

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/lookup"
)

// ErrMergeDegenerate is returned when a resolved factor is not a positive finite number.
var ErrMergeDegenerate = errors.New("merge produced unusable factor")

// DefaultFactor is assigned when no factor can be resolved.
const DefaultFactor = 1.0

// missingDatesLogged caps the missing dates written to the log.
const missingDatesLogged = 5

// Stats describes how factors were resolved for one tick set.
type Stats struct {
	Rows         int
	Exact        int
	Forward      int
	Backward     int
	Defaulted    int
	MissingRows  int   // rows without an exact factor (before filling)
	MissingDates []int // distinct valid date keys without an exact factor, ascending
}

// MissingPct returns the share of rows without an exact factor, in percent.
func (s Stats) MissingPct() float64 {
	if s.Rows == 0 {
		return 0
	}
	return float64(s.MissingRows) / float64(s.Rows) * 100
}

// Merger joins ticks to a factor series.
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a new Merger.
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger.With("component", "factor_merger")}
}

// Merge assigns a factor to every tick, preserving tick order.
//
// An empty series assigns DefaultFactor everywhere. Otherwise each tick takes the
// factor of its own date; a date without one takes, in order:
//  1. forward fill: the closest factor at or before the date (for ticks with an
//     invalid date, the factor of the preceding tick)
//  2. backward fill: the closest factor after the date (for ticks with an
//     invalid date, the factor of the following tick)
//  3. DefaultFactor
func (m *Merger) Merge(ticks []domain.TickRecord, series *domain.FactorSeries) ([]domain.MergedTick, Stats, error) {
	stats := Stats{Rows: len(ticks)}
	merged := make([]domain.MergedTick, len(ticks))
	for i := range ticks {
		merged[i].TickRecord = ticks[i]
	}

	if series.Empty() {
		m.logger.Warn("factor series empty, using default factor", "rows", len(ticks), "factor", DefaultFactor)
		for i := range merged {
			merged[i].AdjustFactor = DefaultFactor
			merged[i].Fill = domain.FillDefault
		}
		stats.Defaulted = len(merged)
		return merged, stats, nil
	}

	records := series.Records
	resolved := make([]bool, len(merged))
	missing := make(map[int]struct{})

	// exact join, then forward fill. Forward fill is as-of over the factor
	// series: the nearest earlier factor date wins even when no tick falls on it.
	for i := range merged {
		t := &merged[i]
		if t.DateValid {
			if f, ok := lookup.FactorOn(t.DateKey, records); ok {
				t.AdjustFactor, t.Fill, resolved[i] = f, domain.FillExact, true
				stats.Exact++
				continue
			}
			missing[t.DateKey] = struct{}{}
			stats.MissingRows++
			if f, ok := lookup.FactorAt(t.DateKey, records); ok {
				t.AdjustFactor, t.Fill, resolved[i] = f, domain.FillForward, true
			}
			continue
		}

		stats.MissingRows++
		if i > 0 && resolved[i-1] {
			t.AdjustFactor, t.Fill, resolved[i] = merged[i-1].AdjustFactor, domain.FillForward, true
		}
	}

	// backward fill
	for i := len(merged) - 1; i >= 0; i-- {
		if resolved[i] {
			continue
		}
		t := &merged[i]
		if t.DateValid {
			if f, ok := lookup.FactorAfter(t.DateKey, records); ok {
				t.AdjustFactor, t.Fill, resolved[i] = f, domain.FillBackward, true
			}
			continue
		}
		if i+1 < len(merged) && resolved[i+1] {
			t.AdjustFactor, t.Fill, resolved[i] = merged[i+1].AdjustFactor, domain.FillBackward, true
		}
	}

	// last resort
	for i := range merged {
		if !resolved[i] {
			merged[i].AdjustFactor, merged[i].Fill = DefaultFactor, domain.FillDefault
		}
		switch merged[i].Fill {
		case domain.FillForward:
			stats.Forward++
		case domain.FillBackward:
			stats.Backward++
		case domain.FillDefault:
			stats.Defaulted++
		}
		if f := merged[i].AdjustFactor; f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, stats, fmt.Errorf("%w: row %d factor %v", ErrMergeDegenerate, i, f)
		}
	}

	stats.MissingDates = make([]int, 0, len(missing))
	for d := range missing {
		stats.MissingDates = append(stats.MissingDates, d)
	}
	sort.Ints(stats.MissingDates)

	if stats.MissingRows > 0 {
		shown := stats.MissingDates
		if len(shown) > missingDatesLogged {
			shown = shown[:missingDatesLogged]
		}
		m.logger.Warn("rows missing factor",
			"rows", stats.MissingRows,
			"pct", fmt.Sprintf("%.1f", stats.MissingPct()),
			"dates", shown,
			"forward", stats.Forward,
			"backward", stats.Backward,
			"defaulted", stats.Defaulted,
		)
	}
	m.logger.Info("factors merged", "rows", stats.Rows, "exact", stats.Exact)

	return merged, stats, nil
}
