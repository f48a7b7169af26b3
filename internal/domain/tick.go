package domain

import (
	"time"

	"tick-adjust-lab/internal/tabular"
)

// TickRecord is one level-2 market-data event for one security.
type TickRecord struct {
	SecurityID string                   // SecuCode as text
	TradingDay time.Time                // normalized trading date; zero when DateValid is false
	DateValid  bool                     // false when TradingDay could not be parsed
	DateKey    int                      // YYYYMMDD; 0 when DateValid is false
	TickTime   tabular.Value            // tick timestamp cell as read
	Prices     map[string]float64       // price fields present and non-null
	Quantities map[string]float64       // numeric view of the quantity fields present and non-null
	Extra      map[string]tabular.Value // every non-price column as read, carried unchanged
}

// TickSet is the chronologically ordered tick data of one source file.
type TickSet struct {
	SecurityID   string       // file stem
	SourcePath   string       // file the ticks were read from
	Columns      []string     // source columns, in file order
	Records      []TickRecord // ascending by (TradingDay, TickTime); invalid dates last
	InvalidDates int          // rows whose trading date could not be parsed
}

// Len returns the number of ticks.
func (s *TickSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// DateKeyRange returns the smallest and largest valid date key.
// ok is false when no record has a valid date.
func (s *TickSet) DateKeyRange() (start, end int, ok bool) {
	for _, r := range s.Records {
		if !r.DateValid {
			continue
		}
		if !ok || r.DateKey < start {
			start = r.DateKey
		}
		if !ok || r.DateKey > end {
			end = r.DateKey
		}
		ok = true
	}
	return start, end, ok
}

// TickTimeRange returns the smallest and largest non-null tick time.
func (s *TickSet) TickTimeRange() (first, last tabular.Value) {
	for _, r := range s.Records {
		if r.TickTime.IsNull() {
			continue
		}
		if first.IsNull() || tabular.Compare(r.TickTime, first) < 0 {
			first = r.TickTime
		}
		if last.IsNull() || tabular.Compare(r.TickTime, last) > 0 {
			last = r.TickTime
		}
	}
	return first, last
}

// DistinctDates counts distinct valid date keys.
func (s *TickSet) DistinctDates() int {
	seen := make(map[int]struct{})
	for _, r := range s.Records {
		if r.DateValid {
			seen[r.DateKey] = struct{}{}
		}
	}
	return len(seen)
}

// FillMethod records how a tick's factor was resolved.
type FillMethod string

const (
	FillExact    FillMethod = "EXACT"
	FillForward  FillMethod = "FORWARD"
	FillBackward FillMethod = "BACKWARD"
	FillDefault  FillMethod = "DEFAULT"
)

// MergedTick is a tick joined to the factor of its trading date.
type MergedTick struct {
	TickRecord
	AdjustFactor float64    // factor applied to every price field of this tick
	Fill         FillMethod // how AdjustFactor was resolved
}

// AdjustedTick is a merged tick whose price fields were rescaled.
// Raw holds the unadjusted value of every rescaled field.
type AdjustedTick struct {
	MergedTick
	Raw map[string]float64
}
