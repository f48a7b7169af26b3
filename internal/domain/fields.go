package domain

import (
	"fmt"
)

// Canonical tick column names.
const (
	ColSecuCode   = "SecuCode"
	ColTradingDay = "TradingDay"
	ColTickTime   = "TickTime"
	ColPrice      = "Price"
	ColAskPrice1  = "AskPrice1"
	ColBidPrice1  = "BidPrice1"
)

// Columns added by the pipeline.
const (
	ColAdjustFactor   = "adjust_factor"
	ColTradingDateInt = "trading_date_int"
	RawFieldPrefix    = "Raw"
)

// PricePrecision is the number of decimal places kept on adjusted prices.
const PricePrecision = 2

// FieldCategory classifies a tick column.
type FieldCategory int

const (
	CategoryPassthrough FieldCategory = iota // not classified, carried unchanged
	CategoryKey                              // identity and ordering columns
	CategoryPrice                            // rescaled by the adjustment factor
	CategoryQuantity                         // counts, volumes, turnovers; never rescaled
)

// String returns the category name.
func (c FieldCategory) String() string {
	switch c {
	case CategoryKey:
		return "KEY"
	case CategoryPrice:
		return "PRICE"
	case CategoryQuantity:
		return "QUANTITY"
	default:
		return "PASSTHROUGH"
	}
}

// FieldSet is the fixed classification of tick columns.
// Price and quantity sets are disjoint. A FieldSet is immutable after construction.
type FieldSet struct {
	price    []string
	quantity []string
	category map[string]FieldCategory
}

// KeyFields are the identity columns of a tick record.
var KeyFields = []string{ColSecuCode, ColTradingDay, ColTickTime}

// DefaultPriceFields returns the level-2 price columns, in adjustment order:
// last and weighted prices, then ask and bid level by level.
func DefaultPriceFields() []string {
	fields := []string{ColPrice, "WeightBidPrice", "WeightAskPrice"}
	for i := 1; i <= 10; i++ {
		fields = append(fields, fmt.Sprintf("AskPrice%d", i), fmt.Sprintf("BidPrice%d", i))
	}
	return fields
}

// DefaultQuantityFields returns the level-2 quantity columns.
func DefaultQuantityFields() []string {
	fields := []string{
		"TickTimeDiff",
		"DealNum", "Volume", "Turnover",
		"TotalDealNum", "TotalVolume", "TotalTurnover",
		"TotalBidVolume", "TotalAskVolume",
	}
	for _, prefix := range []string{"AskVolume", "BidVolume", "AskOrder", "BidOrder"} {
		for i := 1; i <= 10; i++ {
			fields = append(fields, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	return fields
}

// DefaultFieldSet returns the level-2 classification.
func DefaultFieldSet() *FieldSet {
	fs, err := NewFieldSet(DefaultPriceFields(), DefaultQuantityFields())
	if err != nil {
		panic(err)
	}
	return fs
}

// NewFieldSet builds a classification from explicit lists.
// Returns an error if a name repeats, overlaps the other set, or is a key column.
func NewFieldSet(price, quantity []string) (*FieldSet, error) {
	fs := &FieldSet{
		price:    append([]string(nil), price...),
		quantity: append([]string(nil), quantity...),
		category: make(map[string]FieldCategory, len(price)+len(quantity)+len(KeyFields)),
	}
	for _, k := range KeyFields {
		fs.category[k] = CategoryKey
	}

	add := func(name string, c FieldCategory) error {
		if prev, ok := fs.category[name]; ok {
			return fmt.Errorf("field %s already classified as %s", name, prev)
		}
		fs.category[name] = c
		return nil
	}
	for _, f := range price {
		if err := add(f, CategoryPrice); err != nil {
			return nil, err
		}
	}
	for _, f := range quantity {
		if err := add(f, CategoryQuantity); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// PriceFields returns the price columns in adjustment order.
func (f *FieldSet) PriceFields() []string {
	return append([]string(nil), f.price...)
}

// QuantityFields returns the never-adjusted quantity columns.
func (f *FieldSet) QuantityFields() []string {
	return append([]string(nil), f.quantity...)
}

// Category returns the classification of a column.
func (f *FieldSet) Category(name string) FieldCategory {
	return f.category[name]
}

// IsPrice reports whether a column is rescaled.
func (f *FieldSet) IsPrice(name string) bool {
	return f.category[name] == CategoryPrice
}

// RawFieldName is the column that preserves the unadjusted value of a price field.
func RawFieldName(field string) string {
	return RawFieldPrefix + field
}
