package domain

import "time"

// DailyFactorRecord is one trading day of a forward-adjustment series.
// AdjustFactor = CloseAdjusted / Close.
type DailyFactorRecord struct {
	TradingDate   time.Time // calendar date (UTC midnight)
	DateKey       int       // YYYYMMDD
	Close         float64   // unadjusted close
	CloseAdjusted float64   // forward-adjusted close
	AdjustFactor  float64   // CloseAdjusted / Close
}

// FactorSeries is the ordered daily factor series of one security.
// Records are unique per DateKey and sorted ascending. A series is never
// mutated once built; callers share it read-only.
type FactorSeries struct {
	SecurityID string              // security the series was resolved for
	SourcePath string              // factor file the series was loaded from
	Records    []DailyFactorRecord // ascending by DateKey
	Anomalies  []string            // sanity flags raised while loading
	Fallback   bool                // true when the requested date range matched nothing
}

// Len returns the number of trading days.
func (s *FactorSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Empty reports whether the series has no records.
func (s *FactorSeries) Empty() bool {
	return s.Len() == 0
}

// FactorRange returns the smallest and largest factor. Both are 0 for an empty series.
func (s *FactorSeries) FactorRange() (minFactor, maxFactor float64) {
	for i, r := range s.Records {
		if i == 0 || r.AdjustFactor < minFactor {
			minFactor = r.AdjustFactor
		}
		if i == 0 || r.AdjustFactor > maxFactor {
			maxFactor = r.AdjustFactor
		}
	}
	return minFactor, maxFactor
}

// Oldest returns the first record. ok is false for an empty series.
func (s *FactorSeries) Oldest() (DailyFactorRecord, bool) {
	if s.Empty() {
		return DailyFactorRecord{}, false
	}
	return s.Records[0], true
}

// Latest returns the last record. ok is false for an empty series.
func (s *FactorSeries) Latest() (DailyFactorRecord, bool) {
	if s.Empty() {
		return DailyFactorRecord{}, false
	}
	return s.Records[len(s.Records)-1], true
}
