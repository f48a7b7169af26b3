// Package adjust rescales tick price fields by their merged adjustment factor.
package adjust

import (
	"log/slog"
	"maps"
	"math"

	"github.com/shopspring/decimal"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/metrics"
)

// Result is the output of one adjustment pass.
type Result struct {
	Ticks          []domain.AdjustedTick
	AdjustedFields []string           // price fields present in the input, in classification order
	Precision      int                // decimal places kept on adjusted prices
	FactorStats    domain.FactorStats // statistics of the applied factors
}

// Adjuster rewrites the price fields of merged ticks.
type Adjuster struct {
	fields *domain.FieldSet
	logger *slog.Logger
}

// NewAdjuster creates a new Adjuster. A nil field set uses domain.DefaultFieldSet.
func NewAdjuster(fields *domain.FieldSet, logger *slog.Logger) *Adjuster {
	if fields == nil {
		fields = domain.DefaultFieldSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adjuster{fields: fields, logger: logger.With("component", "price_adjuster")}
}

// RoundPrice returns raw * factor rounded half away from zero to PricePrecision places.
// Non-finite inputs propagate as the plain product.
func RoundPrice(raw, factor float64) float64 {
	if !isFinite(raw) || !isFinite(factor) {
		return raw * factor
	}
	v, _ := decimal.NewFromFloat(raw).
		Mul(decimal.NewFromFloat(factor)).
		Round(domain.PricePrecision).
		Float64()
	return v
}

// Adjust rescales every price field listed in columns. The raw value of each
// rescaled field is kept in AdjustedTick.Raw. Quantity and passthrough fields are
// copied unchanged. The input ticks are not modified.
func (a *Adjuster) Adjust(merged []domain.MergedTick, columns []string) *Result {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var adjusted []string
	for _, f := range a.fields.PriceFields() {
		if present[f] {
			adjusted = append(adjusted, f)
		}
	}

	out := make([]domain.AdjustedTick, len(merged))
	factors := make([]float64, len(merged))
	for i, m := range merged {
		t := domain.AdjustedTick{
			MergedTick: m,
			Raw:        make(map[string]float64, len(adjusted)),
		}
		t.Prices = maps.Clone(m.Prices)
		t.Quantities = maps.Clone(m.Quantities)
		t.Extra = maps.Clone(m.Extra)

		for _, f := range adjusted {
			raw, ok := m.Prices[f]
			if !ok {
				continue
			}
			t.Raw[f] = raw
			t.Prices[f] = RoundPrice(raw, m.AdjustFactor)
		}

		out[i] = t
		factors[i] = m.AdjustFactor
	}

	stats := metrics.SummarizeFactors(factors)
	a.logger.Info("price fields adjusted",
		"rows", len(out),
		"fields", len(adjusted),
		"precision", domain.PricePrecision,
		"factor_min", stats.Min,
		"factor_max", stats.Max,
		"factor_latest", stats.Latest,
	)

	return &Result{
		Ticks:          out,
		AdjustedFields: adjusted,
		Precision:      domain.PricePrecision,
		FactorStats:    stats,
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
