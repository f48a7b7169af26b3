package reporting

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"tick-adjust-lab/internal/domain"
)

// Error text longer than maxErrorLen is cut to truncatedErrorLen runes plus "...".
const (
	maxErrorLen       = 100
	truncatedErrorLen = 97
)

// sampleIssuesShown caps the validation issues listed in the sample section.
const sampleIssuesShown = 2

const reportTimeLayout = "2006-01-02 15:04:05"

// ProcessingRules are listed at the end of every batch report.
var ProcessingRules = []string{
	"**Factor source:** local daily forward-adjusted factor files",
	"**Adjustment factor:** adjust_factor = close_qfq / close of the same trading date",
	"**Only price fields are adjusted:** last price, bid/ask prices of every level and weighted bid/ask prices",
	"**Prices keep two decimals:** every adjusted price is rounded half away from zero to 2 places",
	"**Volumes and turnovers are unchanged:** Volume, Turnover, TotalVolume, TotalTurnover and similar fields",
	"**Order book quantities are unchanged:** AskVolume1-10, BidVolume1-10, AskOrder1-10, BidOrder1-10",
	"**Raw values are preserved:** each adjusted price field keeps its original value in Raw{Field}",
	"**Missing factors:** a date without a factor takes the previous factor, then the next one, then 1.0",
}

// RenderMarkdown renders a batch outcome as the batch processing report.
func RenderMarkdown(b *domain.BatchOutcome) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Level-2 Forward Adjustment Batch Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", b.FinishedAt.Format(reportTimeLayout)))
	sb.WriteString(fmt.Sprintf("**Period:** %s to %s\n", b.StartedAt.Format(reportTimeLayout), b.FinishedAt.Format(reportTimeLayout)))
	if b.RunID != "" {
		sb.WriteString(fmt.Sprintf("**Run ID:** %s\n", b.RunID))
	}
	sb.WriteString("\n")

	// Overview
	sb.WriteString("## Overview\n\n")
	sb.WriteString(fmt.Sprintf("- **Total files:** %d\n", b.Total))
	sb.WriteString(fmt.Sprintf("- **Succeeded:** %d\n", b.Succeeded))
	sb.WriteString(fmt.Sprintf("- **Failed:** %d\n", b.Failed))
	sb.WriteString(fmt.Sprintf("- **Success rate:** %.1f%%\n", b.SuccessRate()*100))
	if b.Cancelled {
		sb.WriteString("- **Cancelled:** yes, remaining files were not processed\n")
	}
	sb.WriteString("\n")

	if len(b.Successes) > 0 {
		sb.WriteString("## Succeeded Securities\n\n")
		sb.WriteString("| # | Security | Rows | Time (s) | Factor Range | Latest Factor | Validation |\n")
		sb.WriteString("|---|----------|------|----------|--------------|---------------|------------|\n")
		for i, o := range sortedBySecurity(b.Successes) {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %.6f | %s |\n",
				i+1,
				o.SecurityID,
				formatThousands(o.Rows.Raw),
				seconds(o.Duration, 1),
				FactorRange(o),
				o.FactorLatest,
				validationStatus(o.Validation),
			))
		}
		sb.WriteString("\n")
	}

	if len(b.Failures) > 0 {
		sb.WriteString("## Failed Securities\n\n")
		sb.WriteString("| # | Security | Kind | Error |\n")
		sb.WriteString("|---|----------|------|-------|\n")
		for i, o := range sortedBySecurity(b.Failures) {
			kind := "UNKNOWN"
			if o.Failure != nil {
				kind = string(o.Failure.Kind)
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n", i+1, o.SecurityID, kind, TruncateError(errorText(o))))
		}
		sb.WriteString("\n")
	}

	if len(b.Successes) > 0 {
		writeSample(&sb, b.Successes[0])
	}

	sb.WriteString("## Processing Rules\n\n")
	for i, rule := range ProcessingRules {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, rule))
	}

	return sb.String()
}

// writeSample renders the detail section of one successful security.
func writeSample(sb *strings.Builder, o *domain.ProcessingOutcome) {
	sb.WriteString("## Sample Detail\n\n")
	sb.WriteString(fmt.Sprintf("### Security %s\n\n", o.SecurityID))
	sb.WriteString(fmt.Sprintf("- **Status:** %s\n", map[bool]string{true: "success", false: "failed"}[o.Success]))
	sb.WriteString(fmt.Sprintf("- **Processing time:** %ss\n", seconds(o.Duration, 2)))
	sb.WriteString(fmt.Sprintf("- **Rows:** %d\n", o.Rows.Raw))
	sb.WriteString(fmt.Sprintf("- **Trading date range:** %d - %d\n", o.StartDateKey, o.EndDateKey))
	fields := "none"
	if len(o.AdjustedFields) > 0 {
		fields = strings.Join(o.AdjustedFields, ", ")
	}
	sb.WriteString(fmt.Sprintf("- **Adjusted price fields:** %s\n", fields))
	sb.WriteString(fmt.Sprintf("- **Price decimal places:** %d\n", o.Precision))
	if o.FactorSource != "" {
		sb.WriteString(fmt.Sprintf("- **Factor source:** %s\n", o.FactorSource))
	}
	if o.FactorFallback {
		sb.WriteString("- **Factor range fallback:** full series used\n")
	}

	if v := o.Validation; v != nil {
		sb.WriteString(fmt.Sprintf("- **Validation:** %s\n", validationStatus(v)))
		if len(v.Issues) > 0 {
			sb.WriteString("- **Validation issues:**\n")
			for _, issue := range v.Issues[:min(sampleIssuesShown, len(v.Issues))] {
				sb.WriteString(fmt.Sprintf("  - %s\n", issue))
			}
			if len(v.Issues) > sampleIssuesShown {
				sb.WriteString(fmt.Sprintf("  - ... %d more issues\n", len(v.Issues)-sampleIssuesShown))
			}
		}
	}
	sb.WriteString("\n")
}

// TruncateError shortens error text for table cells.
func TruncateError(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	r := []rune(msg)
	if len(r) > maxErrorLen {
		return string(r[:truncatedErrorLen]) + "..."
	}
	return msg
}

func errorText(o *domain.ProcessingOutcome) string {
	if msg := o.ErrorMessage(); msg != "" {
		return msg
	}
	return "unknown error"
}

func validationStatus(v *domain.ValidationReport) string {
	switch {
	case v == nil:
		return "N/A"
	case v.Passed:
		return "passed"
	default:
		return fmt.Sprintf("failed (%d issues)", len(v.Issues))
	}
}

func sortedBySecurity(in []*domain.ProcessingOutcome) []*domain.ProcessingOutcome {
	out := append([]*domain.ProcessingOutcome(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SecurityID < out[j].SecurityID
	})
	return out
}

// formatThousands renders n with comma separators.
func formatThousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// formatTime renders t or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
