package pipeline

import (
	"fmt"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/factors"
	"tick-adjust-lab/internal/tabular"
)

// ColFactorDate is the calendar date column of the daily factor artifact.
const ColFactorDate = "date"

// AdjustedTable lays out adjusted ticks as a table: the source columns, one
// Raw<Field> column per adjusted field, the applied factor and the date key.
func AdjustedTable(columns, adjustedFields []string, ticks []domain.AdjustedTick) (*tabular.Table, error) {
	header := make([]string, 0, len(columns)+len(adjustedFields)+2)
	header = append(header, columns...)
	for _, f := range adjustedFields {
		header = append(header, domain.RawFieldName(f))
	}
	header = append(header, domain.ColAdjustFactor, domain.ColTradingDateInt)

	tbl := tabular.NewTable(header...)
	for i, t := range ticks {
		row := make([]tabular.Value, 0, len(header))
		for _, c := range columns {
			row = append(row, cell(t, c))
		}
		for _, f := range adjustedFields {
			if raw, ok := t.Raw[f]; ok {
				row = append(row, tabular.Float(raw))
			} else {
				row = append(row, tabular.Null())
			}
		}
		row = append(row, tabular.Float(t.AdjustFactor))
		if t.DateValid {
			row = append(row, tabular.Int(int64(t.DateKey)))
		} else {
			row = append(row, tabular.Null())
		}

		if err := tbl.Append(row); err != nil {
			return nil, fmt.Errorf("adjusted row %d: %w", i, err)
		}
	}
	return tbl, nil
}

// cell returns the value of a source column for one tick. Non-price cells
// are emitted as read so their kind and exact value survive.
func cell(t domain.AdjustedTick, column string) tabular.Value {
	if v, ok := t.Prices[column]; ok {
		return tabular.Float(v)
	}
	if v, ok := t.Extra[column]; ok {
		return v
	}
	if v, ok := t.Quantities[column]; ok {
		return tabular.Float(v)
	}
	return tabular.Null()
}

// FactorTable lays out a daily factor series as a table.
func FactorTable(series *domain.FactorSeries) (*tabular.Table, error) {
	tbl := tabular.NewTable(
		factors.ColCode,
		ColFactorDate,
		domain.ColTradingDateInt,
		factors.ColClose,
		factors.ColCloseAdj,
		domain.ColAdjustFactor,
	)
	for _, r := range series.Records {
		err := tbl.Append([]tabular.Value{
			tabular.String(series.SecurityID),
			tabular.Time(r.TradingDate),
			tabular.Int(int64(r.DateKey)),
			tabular.Float(r.Close),
			tabular.Float(r.CloseAdjusted),
			tabular.Float(r.AdjustFactor),
		})
		if err != nil {
			return nil, fmt.Errorf("factor row %d: %w", r.DateKey, err)
		}
	}
	return tbl, nil
}
