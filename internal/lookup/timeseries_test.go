package lookup

import (
	"testing"

	"tick-adjust-lab/internal/domain"
)

func testSeries() []domain.DailyFactorRecord {
	return []domain.DailyFactorRecord{
		{DateKey: 20230103, AdjustFactor: 0.90},
		{DateKey: 20230105, AdjustFactor: 0.95},
		{DateKey: 20230109, AdjustFactor: 1.00},
	}
}

func TestFactorAt(t *testing.T) {
	records := testSeries()

	tests := []struct {
		name   string
		target int
		want   float64
		ok     bool
	}{
		{"before first", 20230102, 0, false},
		{"exact first", 20230103, 0.90, true},
		{"gap uses earlier", 20230104, 0.90, true},
		{"exact middle", 20230105, 0.95, true},
		{"after last", 20230120, 1.00, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FactorAt(tt.target, records)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.want {
				t.Errorf("Expected factor %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFactorAfter(t *testing.T) {
	records := testSeries()

	if got, ok := FactorAfter(20230102, records); !ok || got != 0.90 {
		t.Errorf("Expected 0.90 before series, got %v (ok=%v)", got, ok)
	}
	if got, ok := FactorAfter(20230105, records); !ok || got != 1.00 {
		t.Errorf("Expected strictly later 1.00, got %v (ok=%v)", got, ok)
	}
	if _, ok := FactorAfter(20230109, records); ok {
		t.Error("Expected no factor after last record")
	}
}

func TestFactorOn(t *testing.T) {
	records := testSeries()

	if got, ok := FactorOn(20230105, records); !ok || got != 0.95 {
		t.Errorf("Expected 0.95, got %v (ok=%v)", got, ok)
	}
	if _, ok := FactorOn(20230104, records); ok {
		t.Error("Expected no exact factor on gap date")
	}
	if _, ok := FactorOn(20230104, nil); ok {
		t.Error("Expected no factor for empty series")
	}
}
