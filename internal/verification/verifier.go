// Package verification checks adjusted tick sets against the numerical and
// structural rules of forward adjustment.
package verification

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"tick-adjust-lab/internal/adjust"
	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/tabular"
)

// Tolerances.
const (
	// RecomputeTolerance bounds |round(raw*factor, 2) - adjusted|; one cent step plus slack.
	RecomputeTolerance = 0.015

	// PrecisionTolerance bounds the sub-cent residue |x*100 - round(x*100)|.
	PrecisionTolerance = 1e-4

	// QuantityTolerance bounds the change of a never-adjusted field.
	QuantityTolerance = 1e-4

	// FactorBandTolerance bounds the spread of factors within one trading date.
	FactorBandTolerance = 1e-4

	// MaxForwardFactor is the largest factor accepted without a warning.
	MaxForwardFactor = 1.001
)

// inconsistentDatesListed caps per-date factor issues in a report.
const inconsistentDatesListed = 3

// Validator checks adjusted ticks against their raw input.
type Validator struct {
	fields *domain.FieldSet
	logger *slog.Logger
}

// NewValidator creates a new Validator. A nil field set uses domain.DefaultFieldSet.
func NewValidator(fields *domain.FieldSet, logger *slog.Logger) *Validator {
	if fields == nil {
		fields = domain.DefaultFieldSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{fields: fields, logger: logger.With("component", "validator")}
}

// Validate compares adjusted ticks row by row with the raw tick set.
// Issues fail the report; warnings never do.
func (v *Validator) Validate(raw *domain.TickSet, adjusted []domain.AdjustedTick) *domain.ValidationReport {
	report := &domain.ValidationReport{
		Issues:   []string{},
		Warnings: []string{},
		Stats:    make(map[string]any),
	}

	present := make(map[string]bool, len(raw.Columns))
	for _, c := range raw.Columns {
		present[c] = true
	}

	report.Stats["raw_rows"] = raw.Len()
	report.Stats["adjusted_rows"] = len(adjusted)
	report.Stats["raw_dates"] = raw.DistinctDates()
	report.Stats["adjusted_dates"] = distinctAdjustedDates(adjusted)

	if raw.Len() != len(adjusted) {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("row count mismatch: raw=%d, adjusted=%d", raw.Len(), len(adjusted)))
	}

	v.checkPrices(report, adjusted, present)
	v.checkQuantities(report, raw, adjusted, present)
	checkFactorUniqueness(report, adjusted)
	checkFactorRange(report, adjusted)
	checkSpread(report, adjusted, present)

	report.Passed = len(report.Issues) == 0

	v.logger.Info("validation finished",
		"security", raw.SecurityID,
		"passed", report.Passed,
		"issues", len(report.Issues),
		"warnings", len(report.Warnings),
	)
	return report
}

// checkPrices recomputes every rescaled field from its raw value.
func (v *Validator) checkPrices(report *domain.ValidationReport, adjusted []domain.AdjustedTick, present map[string]bool) {
	checked := 0
	for _, field := range v.fields.PriceFields() {
		if !present[field] {
			continue
		}

		var (
			n            int
			maxDiff, sum float64
			imprecise    int
		)
		for _, t := range adjusted {
			rawPx, ok := t.Raw[field]
			if !ok {
				continue
			}
			adjPx, ok := t.Prices[field]
			if !ok {
				continue
			}
			diff := math.Abs(adjust.RoundPrice(rawPx, t.AdjustFactor) - adjPx)
			if math.IsNaN(diff) {
				continue
			}
			n++
			sum += diff
			maxDiff = math.Max(maxDiff, diff)
			if !IsTwoDecimal(adjPx) {
				imprecise++
			}
		}
		if n == 0 {
			continue
		}
		checked++

		mean := sum / float64(n)
		if maxDiff > RecomputeTolerance {
			report.Issues = append(report.Issues,
				fmt.Sprintf("price field %s adjustment error too large: max=%.4f, mean=%.4f", field, maxDiff, mean))
		} else {
			v.logger.Debug("price field verified", "field", field, "max_diff", maxDiff)
		}
		if imprecise > 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("price field %s has %d values beyond 2 decimals", field, imprecise))
		}
	}
	report.Stats["price_fields_checked"] = checked
}

// checkQuantities verifies never-adjusted fields are unchanged.
func (v *Validator) checkQuantities(report *domain.ValidationReport, raw *domain.TickSet, adjusted []domain.AdjustedTick, present map[string]bool) {
	n := min(raw.Len(), len(adjusted))
	checked := 0
	for _, field := range v.fields.QuantityFields() {
		if !present[field] {
			continue
		}
		checked++

		maxDiff := 0.0
		changedCells := 0
		for i := 0; i < n; i++ {
			before, okBefore := raw.Records[i].Quantities[field]
			after, okAfter := adjusted[i].Quantities[field]
			switch {
			case okBefore != okAfter:
				maxDiff = math.Inf(1)
			case okBefore:
				maxDiff = math.Max(maxDiff, math.Abs(before-after))
			}
			if cellChanged(raw.Records[i].Extra, adjusted[i].Extra, field) {
				changedCells++
			}
		}
		switch {
		case maxDiff > QuantityTolerance:
			report.Issues = append(report.Issues,
				fmt.Sprintf("quantity field %s was modified: max diff=%.6f", field, maxDiff))
		case changedCells > 0:
			report.Issues = append(report.Issues,
				fmt.Sprintf("quantity field %s was modified: %d cells changed type or exact value", field, changedCells))
		default:
			v.logger.Debug("quantity field unchanged", "field", field)
		}
	}
	report.Stats["quantity_fields_checked"] = checked
}

// cellChanged reports whether a cell carried in both rows differs in kind or value.
func cellChanged(before, after map[string]tabular.Value, field string) bool {
	a, okBefore := before[field]
	b, okAfter := after[field]
	if !okBefore || !okAfter {
		return false
	}
	return a.Kind() != b.Kind() || tabular.Compare(a, b) != 0
}

// checkFactorUniqueness reports trading dates carrying more than one factor.
func checkFactorUniqueness(report *domain.ValidationReport, adjusted []domain.AdjustedTick) {
	type band struct {
		distinct map[float64]struct{}
		lo, hi   float64
	}
	byDate := make(map[int]*band)
	for _, t := range adjusted {
		if !t.DateValid {
			continue
		}
		b, ok := byDate[t.DateKey]
		if !ok {
			b = &band{distinct: make(map[float64]struct{}), lo: t.AdjustFactor, hi: t.AdjustFactor}
			byDate[t.DateKey] = b
		}
		b.distinct[t.AdjustFactor] = struct{}{}
		b.lo = math.Min(b.lo, t.AdjustFactor)
		b.hi = math.Max(b.hi, t.AdjustFactor)
	}

	dates := make([]int, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Ints(dates)

	var problems []string
	for _, d := range dates {
		b := byDate[d]
		if len(b.distinct) > 1 && b.hi-b.lo > FactorBandTolerance {
			problems = append(problems,
				fmt.Sprintf("trading date %d: %d distinct factors, range=%.6f", d, len(b.distinct), b.hi-b.lo))
		}
	}

	report.Stats["inconsistent_factor_dates"] = len(problems)
	if len(problems) > inconsistentDatesListed {
		report.Issues = append(report.Issues, problems[:inconsistentDatesListed]...)
		report.Issues = append(report.Issues,
			fmt.Sprintf("... %d more trading dates with inconsistent factors", len(problems)-inconsistentDatesListed))
		return
	}
	report.Issues = append(report.Issues, problems...)
}

// checkFactorRange warns on factors above MaxForwardFactor.
func checkFactorRange(report *domain.ValidationReport, adjusted []domain.AdjustedTick) {
	if len(adjusted) == 0 {
		return
	}
	maxFactor := math.Inf(-1)
	for _, t := range adjusted {
		maxFactor = math.Max(maxFactor, t.AdjustFactor)
	}
	report.Stats["max_factor"] = maxFactor
	if maxFactor > MaxForwardFactor {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("abnormal forward factor (max=%.6f > %.3f)", maxFactor, MaxForwardFactor))
	}
}

// checkSpread reports rows whose level-1 ask is below the level-1 bid.
func checkSpread(report *domain.ValidationReport, adjusted []domain.AdjustedTick, present map[string]bool) {
	if !present[domain.ColAskPrice1] || !present[domain.ColBidPrice1] {
		return
	}
	abnormal := 0
	for _, t := range adjusted {
		ask, okAsk := t.Prices[domain.ColAskPrice1]
		bid, okBid := t.Prices[domain.ColBidPrice1]
		if okAsk && okBid && ask < bid {
			abnormal++
		}
	}
	report.Stats["abnormal_spreads"] = abnormal
	if abnormal > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d rows with abnormal spread (%s < %s)", abnormal, domain.ColAskPrice1, domain.ColBidPrice1))
	}
}

// IsTwoDecimal reports whether x has no sub-cent component within PrecisionTolerance.
func IsTwoDecimal(x float64) bool {
	return math.Abs(x*100-math.Round(x*100)) < PrecisionTolerance
}

func distinctAdjustedDates(adjusted []domain.AdjustedTick) int {
	seen := make(map[int]struct{})
	for _, t := range adjusted {
		if t.DateValid {
			seen[t.DateKey] = struct{}{}
		}
	}
	return len(seen)
}
