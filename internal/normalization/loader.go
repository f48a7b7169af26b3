// Package normalization loads raw level-2 tick files into ordered tick sets
// with normalized trading dates.
package normalization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/tabular"
)

// Errors returned by the tick loader.
var (
	// ErrSchema is returned when a required tick column is absent.
	ErrSchema = errors.New("tick schema invalid")

	// ErrEmptyData is returned by callers when a tick file holds no rows.
	ErrEmptyData = errors.New("tick data empty")
)

// RequiredColumns must be present in every tick file.
var RequiredColumns = []string{
	domain.ColSecuCode,
	domain.ColTradingDay,
	domain.ColTickTime,
	domain.ColPrice,
}

// dateLayouts are tried in order for textual trading dates.
var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339Nano,
}

// Loader reads tick files and classifies their columns.
type Loader struct {
	fields *domain.FieldSet
	logger *slog.Logger
}

// NewLoader creates a new Loader. A nil field set uses domain.DefaultFieldSet.
func NewLoader(fields *domain.FieldSet, logger *slog.Logger) *Loader {
	if fields == nil {
		fields = domain.DefaultFieldSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fields: fields, logger: logger.With("component", "tick_loader")}
}

// SecurityIDFromPath derives the security identifier from a tick file name.
func SecurityIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads a tick file and returns its ticks in chronological order.
// A missing required column is fatal (ErrSchema). Unparseable trading dates are
// kept, counted and sorted last.
func (l *Loader) Load(ctx context.Context, path string) (*domain.TickSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tbl, err := tabular.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tick file %s: %w", path, err)
	}

	return l.FromTable(SecurityIDFromPath(path), path, tbl)
}

// FromTable normalizes an already read table.
func (l *Loader) FromTable(securityID, path string, tbl *tabular.Table) (*domain.TickSet, error) {
	tbl.TrimColumnNames()

	var missing []string
	for _, c := range RequiredColumns {
		if !tbl.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		l.logger.Error("tick file missing columns", "security", securityID, "path", path, "missing", missing)
		return nil, fmt.Errorf("%w: %s missing %s", ErrSchema, path, strings.Join(missing, ", "))
	}

	set := &domain.TickSet{
		SecurityID: securityID,
		SourcePath: path,
		Columns:    append([]string(nil), tbl.Columns...),
		Records:    make([]domain.TickRecord, 0, tbl.Len()),
	}

	categories := make([]domain.FieldCategory, len(tbl.Columns))
	for i, c := range tbl.Columns {
		categories[i] = l.fields.Category(c)
	}
	codeIdx := tbl.Index(domain.ColSecuCode)
	dayIdx := tbl.Index(domain.ColTradingDay)
	timeIdx := tbl.Index(domain.ColTickTime)

	for _, row := range tbl.Rows {
		rec := domain.TickRecord{
			SecurityID: strings.TrimSpace(row[codeIdx].Text()),
			TickTime:   row[timeIdx],
			Prices:     make(map[string]float64),
			Quantities: make(map[string]float64),
			Extra:      make(map[string]tabular.Value),
		}

		if day, ok := NormalizeTradingDay(row[dayIdx]); ok {
			rec.TradingDay = day
			rec.DateValid = true
			rec.DateKey = domain.DateKeyOf(day)
		} else {
			set.InvalidDates++
		}

		for i, cell := range row {
			name := tbl.Columns[i]
			switch categories[i] {
			case domain.CategoryPrice:
				if f, ok := cell.Float64(); ok {
					rec.Prices[name] = f
				}
			case domain.CategoryQuantity:
				if f, ok := cell.Float64(); ok {
					rec.Quantities[name] = f
				}
				rec.Extra[name] = cell
			default:
				rec.Extra[name] = cell
			}
		}

		set.Records = append(set.Records, rec)
	}

	SortTicks(set.Records)

	if set.InvalidDates > 0 {
		l.logger.Warn("invalid trading dates", "security", securityID, "rows", set.InvalidDates)
	}

	start, end, _ := set.DateKeyRange()
	first, last := set.TickTimeRange()
	l.logger.Info("tick file loaded",
		"security", securityID,
		"rows", set.Len(),
		"start", start,
		"end", end,
		"first_tick", first.Text(),
		"last_tick", last.Text(),
	)

	return set, nil
}

// NormalizeTradingDay converts a trading-date cell to midnight UTC.
// Integers are read as YYYYMMDD; text is tried against the known layouts.
func NormalizeTradingDay(v tabular.Value) (time.Time, bool) {
	switch v.Kind() {
	case tabular.KindTime:
		ts, _ := v.TimeValue()
		return domain.TruncateDay(ts), true
	case tabular.KindInt, tabular.KindFloat:
		n, ok := v.Int64()
		if !ok {
			return time.Time{}, false
		}
		return domain.DateFromKey(int(n))
	case tabular.KindString:
		text := strings.TrimSpace(v.Text())
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, text); err == nil {
				return domain.TruncateDay(ts), true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
