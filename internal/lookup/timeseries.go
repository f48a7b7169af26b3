package lookup

import (
	"sort"

	"tick-adjust-lab/internal/domain"
)

// FactorOn returns the factor recorded exactly on the target date key.
// Records must be sorted by DateKey ASC.
func FactorOn(target int, records []domain.DailyFactorRecord) (float64, bool) {
	i := sort.Search(len(records), func(i int) bool {
		return records[i].DateKey >= target
	})
	if i < len(records) && records[i].DateKey == target {
		return records[i].AdjustFactor, true
	}
	return 0, false
}

// FactorAt returns the factor of the closest record at or before the target date key.
// Returns false if no record is at or before target.
// Records must be sorted by DateKey ASC.
func FactorAt(target int, records []domain.DailyFactorRecord) (float64, bool) {
	// first record strictly after target
	i := sort.Search(len(records), func(i int) bool {
		return records[i].DateKey > target
	})
	if i == 0 {
		return 0, false
	}
	return records[i-1].AdjustFactor, true
}

// FactorAfter returns the factor of the closest record strictly after the target date key.
// Returns false if no record is after target.
// Records must be sorted by DateKey ASC.
func FactorAfter(target int, records []domain.DailyFactorRecord) (float64, bool) {
	i := sort.Search(len(records), func(i int) bool {
		return records[i].DateKey > target
	})
	if i == len(records) {
		return 0, false
	}
	return records[i].AdjustFactor, true
}
