// Package orchestrator runs batch adjustment over a directory of tick files.
// It coordinates: discovery → per-security processing → batch reporting
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/factors"
	"tick-adjust-lab/internal/files"
	"tick-adjust-lab/internal/observability"
	"tick-adjust-lab/internal/reporting"
)

// Processor adjusts one security file.
type Processor interface {
	ProcessOne(ctx context.Context, path string) *domain.ProcessingOutcome
}

// Orchestrator coordinates batch execution.
// Flow: discovery → processOne per file (sequential, throttled) → reports
type Orchestrator struct {
	processor Processor
	cache     *factors.Cache         // optional, published as metrics after each security
	metrics   *observability.Metrics // optional

	rawDir    string
	pattern   string
	maxFiles  int
	delay     time.Duration
	reportDir string // empty: no report files
	runID     string

	clock  func() time.Time
	logger *slog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Processor Processor

	// Discovery
	RawDir   string
	Pattern  string // glob within RawDir
	MaxFiles int    // 0 = all files

	// Batch behavior
	Delay     time.Duration // pause after each security
	ReportDir string        // where batch reports are written; empty disables them
	RunID     string        // generated when empty

	// Optional
	Cache   *factors.Cache
	Metrics *observability.Metrics
	Clock   func() time.Time
	Logger  *slog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		processor: opts.Processor,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		rawDir:    opts.RawDir,
		pattern:   opts.Pattern,
		maxFiles:  opts.MaxFiles,
		delay:     opts.Delay,
		reportDir: opts.ReportDir,
		runID:     runID,
		clock:     clock,
		logger:    logger.With("component", "orchestrator", "run_id", runID),
	}
}

// Run discovers tick files and processes them as one batch.
// Finding no file is not an error: the empty batch is returned and logged.
func (o *Orchestrator) Run(ctx context.Context) (*domain.BatchOutcome, error) {
	found, err := files.NewDiscovery(o.rawDir).FindByPattern("", o.pattern)
	if err != nil {
		return nil, fmt.Errorf("discover tick files: %w", err)
	}
	if len(found) == 0 {
		o.logger.Error("no tick files found", "dir", o.rawDir, "pattern", o.pattern)
		now := o.clock()
		return &domain.BatchOutcome{RunID: o.runID, StartedAt: now, FinishedAt: now}, nil
	}

	paths := files.Paths(found, o.maxFiles)
	o.logger.Info("tick files found", "found", len(found), "processing", len(paths), "dir", o.rawDir)

	return o.ProcessBatch(ctx, paths)
}

// ProcessBatch processes files sequentially, pausing after each one.
// A failed security never stops the batch. Cancellation is checked between
// securities; the outcomes gathered so far are kept and reported.
func (o *Orchestrator) ProcessBatch(ctx context.Context, paths []string) (*domain.BatchOutcome, error) {
	batch := &domain.BatchOutcome{
		RunID:     o.runID,
		StartedAt: o.clock(),
	}

	for i, path := range paths {
		if ctx.Err() != nil {
			batch.Cancelled = true
			o.logger.Warn("batch cancelled", "processed", i, "remaining", len(paths)-i)
			break
		}

		outcome := o.processor.ProcessOne(ctx, path)
		batch.Add(outcome)
		o.publishCache()

		o.logger.Info("batch progress",
			"done", i+1,
			"total", len(paths),
			"security", outcome.SecurityID,
			"success", outcome.Success,
		)

		if !o.sleep(ctx) {
			batch.Cancelled = i+1 < len(paths)
			if batch.Cancelled {
				o.logger.Warn("batch cancelled", "processed", i+1, "remaining", len(paths)-i-1)
			}
			break
		}
	}

	batch.FinishedAt = o.clock()
	o.metrics.RecordBatch(batch)
	o.releaseCache()

	o.logger.Info("batch finished",
		"total", batch.Total,
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"success_rate", batch.SuccessRate(),
		"duration_sec", batch.Duration().Seconds(),
	)

	if o.reportDir == "" {
		return batch, nil
	}
	reports, err := reporting.WriteBatchReports(o.reportDir, batch)
	batch.Reports = reports
	if err != nil {
		o.logger.Error("write batch report", "error", err)
		return batch, fmt.Errorf("write batch report: %w", err)
	}
	o.logger.Info("batch report written", "files", reports)
	return batch, nil
}

// sleep waits for the configured delay. Returns false if ctx ended first.
func (o *Orchestrator) sleep(ctx context.Context) bool {
	if o.delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(o.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (o *Orchestrator) publishCache() {
	if o.cache == nil {
		return
	}
	s := o.cache.Stats()
	o.metrics.SetCacheStats(s.Hits, s.Misses, s.Entries)
}

// releaseCache drops the factor series cached during this run.
func (o *Orchestrator) releaseCache() {
	if o.cache == nil {
		return
	}
	s := o.cache.Stats()
	o.logger.Debug("factor cache released", "hits", s.Hits, "misses", s.Misses, "entries", s.Entries)
	o.cache.Reset()
}
