package reporting

import (
	"fmt"
	"strings"

	"tick-adjust-lab/internal/domain"
)

// RenderCSV renders per-security outcomes as CSV string, ordered by security ID.
func RenderCSV(outcomes []*domain.ProcessingOutcome) string {
	var sb strings.Builder

	// Header
	sb.WriteString("security_id,success,failure_kind,failure_stage,raw_rows,adjusted_rows,trading_days,factor_days,")
	sb.WriteString("start_date,end_date,factor_min,factor_max,factor_latest,factor_fallback,")
	sb.WriteString("missing_factor_rows,filled_forward_rows,filled_backward_rows,defaulted_rows,")
	sb.WriteString("validation_passed,validation_issues,validation_warnings,processing_seconds,processed_at,error\n")

	// Rows
	for _, o := range sortedBySecurity(outcomes) {
		var kind, stage string
		if o.Failure != nil {
			kind, stage = string(o.Failure.Kind), o.Failure.Stage
		}
		passed, issues, warnings := "", 0, 0
		if o.Validation != nil {
			passed = fmt.Sprintf("%t", o.Validation.Passed)
			issues, warnings = len(o.Validation.Issues), len(o.Validation.Warnings)
		}
		sb.WriteString(fmt.Sprintf("%s,%t,%s,%s,%d,%d,%d,%d,%d,%d,%.6f,%.6f,%.6f,%t,%d,%d,%d,%d,%s,%d,%d,%s,%s,%s\n",
			csvField(o.SecurityID),
			o.Success,
			kind,
			stage,
			o.Rows.Raw,
			o.Rows.Adjusted,
			o.Rows.TradingDays,
			o.Rows.FactorDays,
			o.StartDateKey,
			o.EndDateKey,
			o.FactorMin,
			o.FactorMax,
			o.FactorLatest,
			o.FactorFallback,
			o.Rows.MissingFactor,
			o.Rows.FilledForward,
			o.Rows.FilledBackward,
			o.Rows.Defaulted,
			passed,
			issues,
			warnings,
			seconds(o.Duration, 3),
			formatTime(o.ProcessedAt),
			csvField(o.ErrorMessage()),
		))
	}

	return sb.String()
}

// csvField quotes s when it holds a separator, quote or line break.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
