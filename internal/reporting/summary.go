package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"tick-adjust-lab/internal/domain"
)

// summaryTimeLayout is the processing_date layout of a security summary.
const summaryTimeLayout = "2006-01-02 15:04:05"

// SecuritySummary is the per-security JSON artifact.
type SecuritySummary struct {
	StockCode           string            `json:"stock_code"`
	ProcessingDate      string            `json:"processing_date"`
	DataPeriod          string            `json:"data_period"`
	TotalRecords        int               `json:"total_records"`
	TradingDays         int               `json:"trading_days"`
	PriceDecimalPlaces  int               `json:"price_decimal_places"`
	AdjustFactorMin     float64           `json:"adjust_factor_min"`
	AdjustFactorMax     float64           `json:"adjust_factor_max"`
	AdjustFactorLatest  float64           `json:"adjust_factor_latest"`
	AdjustedPriceFields []string          `json:"adjusted_price_fields"`
	DataSource          string            `json:"data_source"`
	ValidationPassed    bool              `json:"validation_passed"`
	ValidationIssues    []string          `json:"validation_issues"`
	ValidationWarnings  []string          `json:"validation_warnings"`
	DataStats           map[string]string `json:"data_stats"`
}

// NewSecuritySummary builds the summary of a processed security.
// Factor figures describe the factors applied to the ticks.
func NewSecuritySummary(o *domain.ProcessingOutcome) *SecuritySummary {
	s := &SecuritySummary{
		StockCode:           o.SecurityID,
		ProcessingDate:      o.ProcessedAt.Format(summaryTimeLayout),
		DataPeriod:          fmt.Sprintf("%d to %d", o.StartDateKey, o.EndDateKey),
		TotalRecords:        o.Rows.Adjusted,
		TradingDays:         o.Rows.TradingDays,
		PriceDecimalPlaces:  o.Precision,
		AdjustFactorMin:     o.FactorStats.Min,
		AdjustFactorMax:     o.FactorStats.Max,
		AdjustFactorLatest:  o.FactorStats.Latest,
		AdjustedPriceFields: nonNil(o.AdjustedFields),
		DataSource:          o.FactorSource,
		ValidationIssues:    []string{},
		ValidationWarnings:  []string{},
		DataStats:           DataStats(o),
	}
	if o.Validation != nil {
		s.ValidationPassed = o.Validation.Passed
		s.ValidationIssues = nonNil(o.Validation.Issues)
		s.ValidationWarnings = nonNil(o.Validation.Warnings)
	}
	return s
}

// DataStats renders the row and factor figures of an outcome as display strings.
func DataStats(o *domain.ProcessingOutcome) map[string]string {
	stats := map[string]string{
		"raw_rows":   fmt.Sprintf("%d", o.Rows.Raw),
		"date_range": fmt.Sprintf("%d - %d", o.StartDateKey, o.EndDateKey),
	}
	if o.TimeRange != "" {
		stats["time_range"] = o.TimeRange
	}
	if o.Rows.FactorDays > 0 {
		stats["factor_days"] = fmt.Sprintf("%d", o.Rows.FactorDays)
		stats["factor_range"] = FactorRange(o)
		stats["factor_latest"] = fmt.Sprintf("%.6f", o.FactorLatest)
		stats["factor_oldest"] = fmt.Sprintf("%.6f", o.FactorOldest)
	}
	return stats
}

// FactorRange formats the factor range of the resolved series.
func FactorRange(o *domain.ProcessingOutcome) string {
	if o.Rows.FactorDays == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.6f - %.6f", o.FactorMin, o.FactorMax)
}

// WriteSummary writes a summary as indented JSON.
func WriteSummary(path string, s *SecuritySummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (*SecuritySummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	var s SecuritySummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &s, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// seconds renders a duration as fractional seconds.
func seconds(d time.Duration, decimals int) string {
	return fmt.Sprintf("%.*f", decimals, d.Seconds())
}
