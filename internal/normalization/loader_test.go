package normalization

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tick-adjust-lab/internal/domain"
	"tick-adjust-lab/internal/tabular"
)

func TestLoader_OrdersAndClassifies(t *testing.T) {
	tbl := tabular.NewTable("SecuCode", "TradingDay", "TickTime", "Price", "Volume", "AskPrice1", "Flag")
	rows := [][]tabular.Value{
		{tabular.String("600000"), tabular.Int(20230104), tabular.Int(93000000), tabular.Float(10.5), tabular.Int(100), tabular.Float(10.51), tabular.String("B")},
		{tabular.String("600000"), tabular.Int(20230103), tabular.Int(93003000), tabular.Float(10.1), tabular.Int(200), tabular.Null(), tabular.String("S")},
		{tabular.String("600000"), tabular.Int(20230103), tabular.Int(93000000), tabular.Float(10.0), tabular.Int(300), tabular.Float(10.02), tabular.String("B")},
	}
	for _, r := range rows {
		if err := tbl.Append(r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	set, err := NewLoader(nil, nil).FromTable("600000", "600000.parquet", tbl)
	if err != nil {
		t.Fatalf("FromTable failed: %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("Expected 3 ticks, got %d", set.Len())
	}

	wantPrices := []float64{10.0, 10.1, 10.5}
	for i, want := range wantPrices {
		if got := set.Records[i].Prices["Price"]; got != want {
			t.Errorf("tick %d: Expected price %.2f, got %.2f", i, want, got)
		}
	}

	first := set.Records[0]
	if first.DateKey != 20230103 {
		t.Errorf("Expected date key 20230103, got %d", first.DateKey)
	}
	if first.Quantities["Volume"] != 300 {
		t.Errorf("Expected volume 300, got %f", first.Quantities["Volume"])
	}
	if _, ok := first.Prices["Volume"]; ok {
		t.Error("Volume classified as price")
	}
	if v := first.Extra["Volume"]; v.Kind() != tabular.KindInt {
		t.Errorf("Expected Volume cell kept as int, got %s", v.Kind())
	}
	if first.Extra["Flag"].Text() != "B" {
		t.Errorf("Expected passthrough Flag=B, got %q", first.Extra["Flag"].Text())
	}
	if _, ok := set.Records[1].Prices["AskPrice1"]; ok {
		t.Error("null AskPrice1 should be absent")
	}

	start, end, ok := set.DateKeyRange()
	if !ok || start != 20230103 || end != 20230104 {
		t.Errorf("Expected range 20230103-20230104, got %d-%d (ok=%v)", start, end, ok)
	}
}

func TestLoader_InvalidDatesKeptAndSortedLast(t *testing.T) {
	tbl := tabular.NewTable("SecuCode", "TradingDay", "TickTime", "Price")
	_ = tbl.Append([]tabular.Value{tabular.String("1"), tabular.String("garbage"), tabular.Int(1), tabular.Float(1)})
	_ = tbl.Append([]tabular.Value{tabular.String("1"), tabular.String("2023-01-05"), tabular.Int(2), tabular.Float(2)})
	_ = tbl.Append([]tabular.Value{tabular.String("1"), tabular.Int(20231399), tabular.Int(3), tabular.Float(3)})

	set, err := NewLoader(nil, nil).FromTable("1", "1.parquet", tbl)
	if err != nil {
		t.Fatalf("FromTable failed: %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("Expected 3 ticks, got %d", set.Len())
	}
	if set.InvalidDates != 2 {
		t.Errorf("Expected 2 invalid dates, got %d", set.InvalidDates)
	}
	if !set.Records[0].DateValid || set.Records[0].DateKey != 20230105 {
		t.Errorf("Expected valid 20230105 first, got %+v", set.Records[0])
	}
	if set.Records[2].DateValid || set.Records[2].DateKey != 0 {
		t.Errorf("Expected invalid date last with key 0, got %+v", set.Records[2])
	}
}

func TestLoader_MissingRequiredColumn(t *testing.T) {
	tbl := tabular.NewTable("SecuCode", "TradingDay", "Price")
	_, err := NewLoader(nil, nil).FromTable("1", "1.parquet", tbl)
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("Expected ErrSchema, got %v", err)
	}
}

func TestLoader_LoadParquetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "000001.parquet")
	tbl := tabular.NewTable("SecuCode", "TradingDay", "TickTime", "Price")
	day := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	_ = tbl.Append([]tabular.Value{tabular.String("000001"), tabular.Time(day), tabular.Int(93000000), tabular.Float(12.34)})
	if err := tabular.WriteParquet(path, tbl); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	set, err := NewLoader(nil, nil).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.SecurityID != "000001" {
		t.Errorf("Expected security 000001, got %s", set.SecurityID)
	}
	if set.Records[0].DateKey != 20230103 {
		t.Errorf("Expected date key 20230103, got %d", set.Records[0].DateKey)
	}
}

func TestLoader_LoadMissingFile(t *testing.T) {
	_, err := NewLoader(nil, nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"))
	if err == nil || errors.Is(err, ErrSchema) {
		t.Fatalf("Expected read error, got %v", err)
	}
}

func TestNormalizeTradingDay(t *testing.T) {
	tests := []struct {
		in   tabular.Value
		want int
		ok   bool
	}{
		{tabular.Int(20230103), 20230103, true},
		{tabular.Float(20230103), 20230103, true},
		{tabular.String("20230103"), 20230103, true},
		{tabular.String("2023/01/03"), 20230103, true},
		{tabular.String("2023-01-03 09:30:00"), 20230103, true},
		{tabular.Time(time.Date(2023, 1, 3, 14, 0, 0, 0, time.UTC)), 20230103, true},
		{tabular.Int(20230230), 0, false},
		{tabular.Null(), 0, false},
	}
	for _, tt := range tests {
		day, ok := NormalizeTradingDay(tt.in)
		if ok != tt.ok {
			t.Errorf("NormalizeTradingDay(%q) ok = %v, want %v", tt.in.Text(), ok, tt.ok)
			continue
		}
		if ok && domain.DateKeyOf(day) != tt.want {
			t.Errorf("NormalizeTradingDay(%q) = %d, want %d", tt.in.Text(), domain.DateKeyOf(day), tt.want)
		}
	}
}
