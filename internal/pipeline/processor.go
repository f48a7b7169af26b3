// Package pipeline adjusts the tick data of one security end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"tick-adjust-lab/internal/adjust"
	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/factors"
	"tick-adjust-lab/internal/idhash"
	"tick-adjust-lab/internal/merge"
	"tick-adjust-lab/internal/normalization"
	"tick-adjust-lab/internal/observability"
	"tick-adjust-lab/internal/reporting"
	"tick-adjust-lab/internal/storage"
	"tick-adjust-lab/internal/tabular"
	"tick-adjust-lab/internal/verification"
)

// Pipeline stages, as reported in failures and stage metrics.
const (
	StageLoad     = "load"
	StageFactors  = "factors"
	StageMerge    = "merge"
	StageAdjust   = "adjust"
	StageValidate = "validate"
	StagePersist  = "persist"
	StageSinks    = "sinks"
	StageLedger   = "ledger"
)

// Sink names used in metrics.
const (
	sinkAdjustedTicks = "adjusted_ticks"
	sinkDailyFactors  = "daily_factors"
	sinkOutcomes      = "outcomes"
)

// FactorSource provides the factor series of a security over a date-key range.
type FactorSource interface {
	GetFactors(ctx context.Context, securityID string, start, end int) (*domain.FactorSeries, error)
}

// Result carries the intermediate data of one processed security.
// Fields are nil up to the stage that failed.
type Result struct {
	Outcome  *domain.ProcessingOutcome
	Ticks    *domain.TickSet
	Series   *domain.FactorSeries
	Adjusted []domain.AdjustedTick
}

// Processor runs load, factor lookup, merge, adjustment, validation and
// persistence for one security at a time.
type Processor struct {
	factors   FactorSource
	loader    *normalization.Loader
	merger    *merge.Merger
	adjuster  *adjust.Adjuster
	validator *verification.Validator
	sinks     storage.Sinks
	metrics   *observability.Metrics // optional
	outputDir string
	runID     string
	clock     func() time.Time
	logger    *slog.Logger
}

// NewProcessor creates a processor writing artifacts into outputDir.
func NewProcessor(factorSource FactorSource, outputDir string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		factors:   factorSource,
		loader:    normalization.NewLoader(nil, logger),
		merger:    merge.NewMerger(logger),
		adjuster:  adjust.NewAdjuster(nil, logger),
		validator: verification.NewValidator(nil, logger),
		outputDir: outputDir,
		clock:     func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// WithFieldSet replaces the price/quantity classification.
func (p *Processor) WithFieldSet(fields *domain.FieldSet) *Processor {
	p.loader = normalization.NewLoader(fields, p.logger)
	p.adjuster = adjust.NewAdjuster(fields, p.logger)
	p.validator = verification.NewValidator(fields, p.logger)
	return p
}

// WithSinks sets the stores results are written to.
func (p *Processor) WithSinks(sinks storage.Sinks) *Processor {
	p.sinks = sinks
	return p
}

// WithMetrics sets the metrics recorder.
func (p *Processor) WithMetrics(m *observability.Metrics) *Processor {
	p.metrics = m
	return p
}

// WithRunID tags outcomes and sink rows with a batch run ID.
func (p *Processor) WithRunID(runID string) *Processor {
	p.runID = runID
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Processor) WithClock(clock func() time.Time) *Processor {
	p.clock = clock
	return p
}

// ProcessOne adjusts one security file. It never returns an error: every
// failure, including a panic, becomes a failed outcome.
func (p *Processor) ProcessOne(ctx context.Context, path string) *domain.ProcessingOutcome {
	return p.Process(ctx, path).Outcome
}

// Process adjusts one security file and returns the outcome with the data of
// every completed stage.
func (p *Processor) Process(ctx context.Context, path string) (res *Result) {
	begin := time.Now()
	securityID := normalization.SecurityIDFromPath(path)
	logger := p.logger.With("security", securityID)

	res = &Result{
		Outcome: &domain.ProcessingOutcome{
			ID:         idhash.ComputeOutcomeID(p.runID, securityID, path),
			RunID:      p.runID,
			SecurityID: securityID,
			SourcePath: path,
			Artifacts:  []string{},
		},
	}
	stage := StageLoad

	defer func() {
		o := res.Outcome
		if r := recover(); r != nil {
			logger.Error("panic while processing security",
				"stage", stage,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			p.fail(logger, o, stage, domain.FailureInternal, fmt.Errorf("panic in %s: %v", stage, r))
		}
		if o.ProcessedAt.IsZero() {
			o.ProcessedAt = p.clock()
		}
		o.Duration = time.Since(begin)
		p.recordOutcome(ctx, logger, o)

		if o.Success {
			logger.Info("security processed",
				"rows", o.Rows.Adjusted,
				"duration_sec", o.Duration.Seconds(),
				"validation_passed", o.Validation.Passed,
			)
		}
	}()

	logger.Info("processing security", "path", path)
	o := res.Outcome

	// 1. Load ticks
	t0 := time.Now()
	set, err := p.loader.Load(ctx, path)
	p.metrics.ObserveStage(stage, time.Since(t0))
	if err != nil {
		p.fail(logger, o, stage, classify(err), err)
		return res
	}
	res.Ticks = set
	o.Rows.Raw = set.Len()
	o.Rows.InvalidDates = set.InvalidDates
	if set.Len() == 0 {
		p.fail(logger, o, stage, domain.FailureEmptyData,
			fmt.Errorf("%w: %s has no rows", normalization.ErrEmptyData, path))
		return res
	}

	// 2. Determine the tick date range
	start, end, ok := set.DateKeyRange()
	if !ok {
		p.fail(logger, o, stage, domain.FailureEmptyData,
			fmt.Errorf("%w: %s has no valid trading date", normalization.ErrEmptyData, path))
		return res
	}
	o.StartDateKey, o.EndDateKey = start, end
	o.Rows.TradingDays = set.DistinctDates()
	if first, last := set.TickTimeRange(); !first.IsNull() {
		o.TimeRange = first.Text() + " - " + last.Text()
	}
	logger.Info("tick date range", "start", start, "end", end)

	// 3. Resolve factors
	stage = StageFactors
	t0 = time.Now()
	series, err := p.factors.GetFactors(ctx, securityID, start, end)
	p.metrics.ObserveStage(stage, time.Since(t0))
	if err != nil {
		p.fail(logger, o, stage, classify(err), err)
		return res
	}
	if series.Empty() {
		p.fail(logger, o, stage, domain.FailureEmptyData,
			fmt.Errorf("%w: no factors for %s", factors.ErrEmptyData, securityID))
		return res
	}
	res.Series = series
	describeSeries(o, series)

	// 4. Merge
	stage = StageMerge
	t0 = time.Now()
	merged, mstats, err := p.merger.Merge(set.Records, series)
	p.metrics.ObserveStage(stage, time.Since(t0))
	if err != nil {
		p.fail(logger, o, stage, classify(err), err)
		return res
	}
	o.Rows.MissingFactor = mstats.MissingRows
	o.Rows.FilledForward = mstats.Forward
	o.Rows.FilledBackward = mstats.Backward
	o.Rows.Defaulted = mstats.Defaulted

	// 5. Adjust
	stage = StageAdjust
	t0 = time.Now()
	adjusted := p.adjuster.Adjust(merged, set.Columns)
	p.metrics.ObserveStage(stage, time.Since(t0))
	res.Adjusted = adjusted.Ticks
	o.Rows.Adjusted = len(adjusted.Ticks)
	o.AdjustedFields = adjusted.AdjustedFields
	o.Precision = adjusted.Precision
	o.FactorStats = adjusted.FactorStats

	// 6. Validate
	stage = StageValidate
	t0 = time.Now()
	report := p.validator.Validate(set, adjusted.Ticks)
	p.metrics.ObserveStage(stage, time.Since(t0))
	o.Validation = report
	for _, issue := range report.Issues {
		logger.Warn("validation issue", "issue", issue)
	}

	// 7. Persist artifacts
	stage = StagePersist
	o.ProcessedAt = p.clock()
	t0 = time.Now()
	artifacts, err := p.writeArtifacts(o, set.Columns, adjusted.Ticks, series)
	p.metrics.ObserveStage(stage, time.Since(t0))
	o.Artifacts = append(o.Artifacts, artifacts...)
	if err != nil {
		p.fail(logger, o, stage, domain.FailurePersist, err)
		return res
	}

	// 8. Sinks
	stage = StageSinks
	t0 = time.Now()
	err = p.writeSinks(ctx, securityID, adjusted.Ticks, series)
	p.metrics.ObserveStage(stage, time.Since(t0))
	if err != nil {
		p.fail(logger, o, stage, domain.FailurePersist, err)
		return res
	}

	o.Success = true
	return res
}

// writeArtifacts writes the adjusted ticks, the resolved factor series and the
// summary. Returns the paths written so far.
func (p *Processor) writeArtifacts(o *domain.ProcessingOutcome, columns []string, ticks []domain.AdjustedTick, series *domain.FactorSeries) ([]string, error) {
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	ticksPath, factorsPath, summaryPath := reporting.ArtifactPaths(p.outputDir, o.SecurityID)

	var written []string

	tbl, err := AdjustedTable(columns, o.AdjustedFields, ticks)
	if err != nil {
		return written, err
	}
	if err := tabular.WriteParquet(ticksPath, tbl); err != nil {
		return written, fmt.Errorf("write adjusted ticks: %w", err)
	}
	written = append(written, ticksPath)

	tbl, err = FactorTable(series)
	if err != nil {
		return written, err
	}
	if err := tabular.WriteParquet(factorsPath, tbl); err != nil {
		return written, fmt.Errorf("write daily factors: %w", err)
	}
	written = append(written, factorsPath)

	if err := reporting.WriteSummary(summaryPath, reporting.NewSecuritySummary(o)); err != nil {
		return written, err
	}
	written = append(written, summaryPath)

	return written, nil
}

// writeSinks stores the adjusted ticks and factor series in the configured stores.
func (p *Processor) writeSinks(ctx context.Context, securityID string, ticks []domain.AdjustedTick, series *domain.FactorSeries) error {
	if s := p.sinks.Ticks; s != nil {
		t0 := time.Now()
		err := s.InsertBulk(ctx, p.runID, securityID, ticks)
		p.metrics.RecordSinkWrite(sinkAdjustedTicks, time.Since(t0), err)
		if err != nil {
			return fmt.Errorf("store adjusted ticks: %w", err)
		}
	}
	if s := p.sinks.Factors; s != nil {
		t0 := time.Now()
		err := s.InsertSeries(ctx, p.runID, series)
		p.metrics.RecordSinkWrite(sinkDailyFactors, time.Since(t0), err)
		if err != nil {
			return fmt.Errorf("store factor series: %w", err)
		}
	}
	return nil
}

// recordOutcome writes the outcome ledger and metrics. A ledger error fails
// an otherwise successful outcome.
func (p *Processor) recordOutcome(ctx context.Context, logger *slog.Logger, o *domain.ProcessingOutcome) {
	if s := p.sinks.Outcomes; s != nil {
		t0 := time.Now()
		err := s.Insert(ctx, o)
		p.metrics.RecordSinkWrite(sinkOutcomes, time.Since(t0), err)
		if err != nil && o.Success {
			p.fail(logger, o, StageLedger, domain.FailurePersist, fmt.Errorf("store outcome: %w", err))
		} else if err != nil {
			logger.Error("store failed outcome", "error", err)
		}
	}
	p.metrics.RecordOutcome(o)
}

// fail marks an outcome failed and logs the cause.
func (p *Processor) fail(logger *slog.Logger, o *domain.ProcessingOutcome, stage string, kind domain.FailureKind, err error) {
	o.Success = false
	o.Failure = &domain.Failure{Kind: kind, Stage: stage, Message: err.Error()}
	logger.Error("security failed", "stage", stage, "kind", kind, "error", err)
}

// describeSeries copies the resolved series figures into the outcome.
func describeSeries(o *domain.ProcessingOutcome, series *domain.FactorSeries) {
	o.Rows.FactorDays = series.Len()
	o.FactorMin, o.FactorMax = series.FactorRange()
	if r, ok := series.Oldest(); ok {
		o.FactorOldest = r.AdjustFactor
	}
	if r, ok := series.Latest(); ok {
		o.FactorLatest = r.AdjustFactor
	}
	o.FactorSource = series.SourcePath
	o.FactorFallback = series.Fallback
}

// classify maps a stage error onto a failure kind.
func classify(err error) domain.FailureKind {
	switch {
	case errors.Is(err, factors.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return domain.FailureNotFound
	case errors.Is(err, factors.ErrSchema),
		errors.Is(err, normalization.ErrSchema),
		errors.Is(err, tabular.ErrUnsupportedFormat):
		return domain.FailureSchema
	case errors.Is(err, factors.ErrEmptyData), errors.Is(err, normalization.ErrEmptyData):
		return domain.FailureEmptyData
	case errors.Is(err, merge.ErrMergeDegenerate):
		return domain.FailureMergeDegenerate
	default:
		return domain.FailureInternal
	}
}
