// Package main adjusts a single tick file and prints what happened to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"tick-adjust-lab/internal/config"
	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/factors"
	"tick-adjust-lab/internal/logging"
	"tick-adjust-lab/internal/pipeline"
	"tick-adjust-lab/internal/verification"
)

const (
	factorDaysShown = 5
	sampleRowsShown = 3
)

func main() {
	// Parse flags
	file := flag.String("file", "", "Tick file to adjust (required)")
	factorDir := flag.String("factor-dir", "", "Directory of daily factor files (required)")
	outputDir := flag.String("output-dir", ".", "Output directory for the three artifacts")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	if *file == "" || *factorDir == "" {
		fmt.Fprintln(os.Stderr, "Error: --file and --factor-dir are required")
		flag.Usage()
		os.Exit(1)
	}

	logger, closer, err := logging.New(config.LoggingConfig{Level: *logLevel, Format: "text", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	store := factors.NewStore(factors.Options{Dir: *factorDir, Logger: logger})
	res := pipeline.NewProcessor(store, *outputDir, logger).Process(context.Background(), *file)
	o := res.Outcome

	if !o.Success {
		fmt.Printf("\nResult: failed (%s at %s)\n", o.Failure.Kind, o.Failure.Stage)
		fmt.Printf("Error: %s\n", o.ErrorMessage())
		os.Exit(1)
	}

	fmt.Printf("\nResult: success (%d rows in %.2fs)\n", o.Rows.Adjusted, o.Duration.Seconds())
	fmt.Println("Output files:")
	for _, a := range o.Artifacts {
		fmt.Printf("  %s\n", a)
	}

	printValidation(o.Validation)
	printFactorsByDay(res.Adjusted)
	printSample(res.Adjusted)
}

func printValidation(v *domain.ValidationReport) {
	if v == nil {
		return
	}
	status := "passed"
	if !v.Passed {
		status = "failed"
	}
	fmt.Printf("\nValidation: %s\n", status)
	if len(v.Issues) > 0 {
		fmt.Println("Issues:")
		for _, issue := range v.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}
	if len(v.Warnings) > 0 {
		fmt.Println("Warnings:")
		for _, w := range v.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}

// printFactorsByDay lists the first factor applied on each trading date.
func printFactorsByDay(ticks []domain.AdjustedTick) {
	byDay := make(map[int]float64)
	for _, t := range ticks {
		if !t.DateValid {
			continue
		}
		if _, ok := byDay[t.DateKey]; !ok {
			byDay[t.DateKey] = t.AdjustFactor
		}
	}
	days := make([]int, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Ints(days)

	fmt.Printf("\nFactor by trading date (first %d):\n", factorDaysShown)
	for _, d := range days[:min(factorDaysShown, len(days))] {
		fmt.Printf("  %d: %.6f\n", d, byDay[d])
	}
	if len(days) > factorDaysShown {
		fmt.Printf("  ... %d more trading dates\n", len(days)-factorDaysShown)
	}
}

// printSample shows the first rows before and after adjustment.
func printSample(ticks []domain.AdjustedTick) {
	sample := ticks[:min(sampleRowsShown, len(ticks))]

	fmt.Printf("\nBefore/after (first %d rows):\n", len(sample))
	fmt.Printf("  %-16s %-14s %10s %10s %14s %12s\n", "trading_date_int", "TickTime", "Price", "RawPrice", "adjust_factor", "Volume")
	for _, t := range sample {
		fmt.Printf("  %-16d %-14s %10.2f %10.4f %14.6f %12s\n",
			t.DateKey,
			t.TickTime.Text(),
			t.Prices[domain.ColPrice],
			t.Raw[domain.ColPrice],
			t.AdjustFactor,
			quantity(t, "Volume"),
		)
	}

	fmt.Println("\nTwo-decimal check:")
	for _, t := range sample {
		p, ok := t.Prices[domain.ColPrice]
		if !ok {
			continue
		}
		verdict := "two decimals"
		if !verification.IsTwoDecimal(p) {
			verdict = "NOT two decimals"
		}
		fmt.Printf("  %v -> %.2f (%s)\n", p, p, verdict)
	}

	fmt.Println("\nVolume check (first rows, unchanged by adjustment):")
	for _, t := range sample {
		fields := make([]string, 0, 2)
		for _, q := range []string{"Volume", "TotalVolume"} {
			fields = append(fields, q+"="+quantity(t, q))
		}
		fmt.Printf("  %d %s %s\n", t.DateKey, t.TickTime.Text(), strings.Join(fields, " "))
	}
}

func quantity(t domain.AdjustedTick, field string) string {
	v, ok := t.Quantities[field]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.0f", v)
}
