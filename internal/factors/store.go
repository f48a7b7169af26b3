// Package factors resolves, loads and caches daily forward-adjustment factors.
package factors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/tabular"
)

// Errors returned by the factor store.
var (
	// ErrNotFound is returned when no factor file can be resolved for a security.
	ErrNotFound = errors.New("factor file not found")

	// ErrSchema is returned when required factor columns are missing after synonym mapping.
	ErrSchema = errors.New("factor schema invalid")

	// ErrEmptyData is returned when a factor file yields no usable rows for a security.
	ErrEmptyData = errors.New("factor data empty")
)

// Canonical factor columns.
const (
	ColCode     = "ts_code"
	ColDate     = "trade_date"
	ColClose    = "close"
	ColCloseAdj = "close_qfq"
)

// Sanity bounds for forward-adjustment factors.
const (
	MaxExpectedFactor   = 1.1
	MinExpectedFactor   = 0.1
	IncreaseEpsilon     = 0.0001
	factorDateKeyLayout = "20060102"
)

var requiredColumns = []string{ColCode, ColDate, ColClose, ColCloseAdj}

// columnSynonyms map alternate header names onto canonical names.
// A synonym is applied only while its canonical column is absent.
var columnSynonyms = []struct{ from, to string }{
	{"股票代码", ColCode},
	{"交易日期", ColDate},
	{"收盘价", ColClose},
	{"前复权收盘价", ColCloseAdj},
	{"收盘", ColClose},
	{"前复权收盘", ColCloseAdj},
	{"code", ColCode},
	{"symbol", ColCode},
	{"secu_code", ColCode},
	{"date", ColDate},
	{"trading_day", ColDate},
	{"adj_close", ColCloseAdj},
	{"close_adj", ColCloseAdj},
}

// Store resolves and loads factor series from a directory of factor files.
type Store struct {
	dir    string
	cache  *Cache
	logger *slog.Logger
}

// Options for creating a Store.
type Options struct {
	Dir    string       // directory holding factor files
	Cache  *Cache       // optional; a new cache is created when nil
	Logger *slog.Logger // optional; slog.Default() when nil
}

// NewStore creates a new Store.
func NewStore(opts Options) *Store {
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:    opts.Dir,
		cache:  cache,
		logger: logger.With("component", "factor_store"),
	}
}

// Cache returns the store's cache.
func (s *Store) Cache() *Cache {
	return s.cache
}

// GetFactors returns the factor series of a security restricted to [start, end]
// (inclusive YYYYMMDD keys). When the range matches no record, the entire series
// is returned with Fallback set. Results are cached per (security, start, end).
func (s *Store) GetFactors(ctx context.Context, securityID string, start, end int) (*domain.FactorSeries, error) {
	if cached, ok := s.cache.Get(securityID, start, end); ok {
		s.logger.Info("factor series from cache", "security", securityID, "start", start, "end", end)
		return cached, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := s.Load(ctx, securityID)
	if err != nil {
		return nil, err
	}

	var filtered []domain.DailyFactorRecord
	for _, r := range full.Records {
		if r.DateKey >= start && r.DateKey <= end {
			filtered = append(filtered, r)
		}
	}

	series := &domain.FactorSeries{
		SecurityID: securityID,
		SourcePath: full.SourcePath,
		Records:    filtered,
		Anomalies:  full.Anomalies,
	}
	if len(filtered) == 0 {
		s.logger.Warn("no factors inside tick date range, using full series",
			"security", securityID, "start", start, "end", end, "days", full.Len())
		series.Records = full.Records
		series.Fallback = true
	}

	series = s.cache.Put(securityID, start, end, series)

	minF, maxF := series.FactorRange()
	s.logger.Info("factor series resolved",
		"security", securityID,
		"days", series.Len(),
		"first", series.Records[0].DateKey,
		"last", series.Records[series.Len()-1].DateKey,
		"factor_min", minF,
		"factor_max", maxF,
	)
	return series, nil
}

// Load reads the full factor series of a security from its factor file.
// Rows with an unparseable date or a non-positive close are dropped; duplicate
// dates keep their first row. Sanity flags are logged and attached, never fatal.
func (s *Store) Load(ctx context.Context, securityID string) (*domain.FactorSeries, error) {
	path, err := s.Resolve(securityID)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tbl, err := tabular.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read factor file %s: %w", path, err)
	}

	normalizeColumns(tbl)
	if missing := missingColumns(tbl); len(missing) > 0 {
		s.logger.Error("factor file missing columns", "security", securityID, "path", path, "missing", missing)
		return nil, fmt.Errorf("%w: %s missing %s", ErrSchema, path, strings.Join(missing, ", "))
	}

	rows, code, err := filterSecurity(tbl, securityID)
	if err != nil {
		s.logger.Warn("security not in factor file", "security", securityID, "path", path)
		return nil, err
	}
	if code != "" && !matchesSecurity(code, securityID) {
		s.logger.Warn("factor file holds a different security code, using it as is",
			"security", securityID, "path", path, "code", code)
	}

	records, dropped, duplicates := buildRecords(tbl, rows)
	if dropped > 0 {
		s.logger.Warn("dropped invalid factor rows", "security", securityID, "rows", dropped)
	}
	if duplicates > 0 {
		s.logger.Warn("dropped duplicate factor dates", "security", securityID, "rows", duplicates)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s has no valid rows for %s", ErrEmptyData, path, securityID)
	}

	anomalies := CheckSanity(records)
	for _, a := range anomalies {
		s.logger.Warn("factor anomaly", "security", securityID, "detail", a)
	}

	s.logger.Info("factor file loaded",
		"security", securityID,
		"path", path,
		"code", code,
		"days", len(records),
	)

	return &domain.FactorSeries{
		SecurityID: securityID,
		SourcePath: path,
		Records:    records,
		Anomalies:  anomalies,
	}, nil
}

// normalizeColumns trims header whitespace and applies the synonym table.
func normalizeColumns(t *tabular.Table) {
	t.TrimColumnNames()
	for _, syn := range columnSynonyms {
		if !t.Has(syn.to) && t.Has(syn.from) {
			t.Rename(syn.from, syn.to)
		}
	}
}

func missingColumns(t *tabular.Table) []string {
	var missing []string
	for _, c := range requiredColumns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// codeVariants are the security code spellings tried against a shared file, in order.
func codeVariants(securityID string) []string {
	return []string{securityID + ".SH", securityID + ".SZ", securityID}
}

// matchesSecurity reports whether code is one of the security's code variants.
func matchesSecurity(code, securityID string) bool {
	for _, variant := range codeVariants(securityID) {
		if strings.EqualFold(code, variant) {
			return true
		}
	}
	return false
}

// filterSecurity returns the row indexes belonging to the security and the code matched.
// A single-security file is returned whole.
func filterSecurity(t *tabular.Table, securityID string) ([]int, string, error) {
	codeIdx := t.Index(ColCode)

	byCode := make(map[string][]int)
	for i, row := range t.Rows {
		code := strings.TrimSpace(row[codeIdx].Text())
		byCode[code] = append(byCode[code], i)
	}

	if len(byCode) <= 1 {
		all := make([]int, t.Len())
		for i := range all {
			all[i] = i
		}
		var code string
		for c := range byCode {
			code = c
		}
		return all, code, nil
	}

	for _, variant := range codeVariants(securityID) {
		if rows, ok := byCode[variant]; ok {
			return rows, variant, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s not present among %d codes", ErrEmptyData, securityID, len(byCode))
}

// buildRecords converts rows to records sorted by date with unique date keys.
func buildRecords(t *tabular.Table, rows []int) (records []domain.DailyFactorRecord, dropped, duplicates int) {
	dateIdx := t.Index(ColDate)
	closeIdx := t.Index(ColClose)
	adjIdx := t.Index(ColCloseAdj)

	for _, i := range rows {
		row := t.Rows[i]
		day, ok := parseFactorDate(row[dateIdx])
		if !ok {
			dropped++
			continue
		}
		closePx, ok1 := row[closeIdx].Float64()
		adjPx, ok2 := row[adjIdx].Float64()
		if !ok1 || !ok2 || !isPositive(closePx) || !isPositive(adjPx) {
			dropped++
			continue
		}
		records = append(records, domain.DailyFactorRecord{
			TradingDate:   day,
			DateKey:       domain.DateKeyOf(day),
			Close:         closePx,
			CloseAdjusted: adjPx,
			AdjustFactor:  adjPx / closePx,
		})
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].DateKey < records[b].DateKey
	})

	unique := records[:0]
	for i, r := range records {
		if i > 0 && r.DateKey == unique[len(unique)-1].DateKey {
			duplicates++
			continue
		}
		unique = append(unique, r)
	}
	return unique, dropped, duplicates
}

// parseFactorDate accepts YYYYMMDD as an integer or text, or a timestamp cell.
func parseFactorDate(v tabular.Value) (time.Time, bool) {
	if ts, ok := v.TimeValue(); ok {
		return domain.TruncateDay(ts), true
	}
	if n, ok := v.Int64(); ok {
		return domain.DateFromKey(int(n))
	}
	text := strings.TrimSpace(v.Text())
	if len(text) != len(factorDateKeyLayout) {
		return time.Time{}, false
	}
	if _, err := strconv.Atoi(text); err != nil {
		return time.Time{}, false
	}
	day, err := time.Parse(factorDateKeyLayout, text)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// CheckSanity flags factors outside (MinExpectedFactor, MaxExpectedFactor] and
// day-over-day increases larger than IncreaseEpsilon. Records must be sorted by date.
func CheckSanity(records []domain.DailyFactorRecord) []string {
	var (
		above, below, increases int
		maxF, minF              = math.Inf(-1), math.Inf(1)
	)
	for i, r := range records {
		if r.AdjustFactor > MaxExpectedFactor {
			above++
		}
		if r.AdjustFactor < MinExpectedFactor {
			below++
		}
		if i > 0 && r.AdjustFactor-records[i-1].AdjustFactor > IncreaseEpsilon {
			increases++
		}
		maxF = math.Max(maxF, r.AdjustFactor)
		minF = math.Min(minF, r.AdjustFactor)
	}

	var flags []string
	if above > 0 {
		flags = append(flags, fmt.Sprintf("%d factors above %.1f (max=%.6f)", above, MaxExpectedFactor, maxF))
	}
	if below > 0 {
		flags = append(flags, fmt.Sprintf("%d factors below %.1f (min=%.6f)", below, MinExpectedFactor, minF))
	}
	if increases > 0 {
		flags = append(flags, fmt.Sprintf("%d factor increases above %.4f", increases, IncreaseEpsilon))
	}
	return flags
}
