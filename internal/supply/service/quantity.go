package service

import "github.com/shopspring/decimal"

// Quantities and unit costs are stored as decimal(14,4).
const storedScale = 4

var (
	storedLimit = decimal.New(1, 10)
	// request and item totals are decimal(14,2)
	totalLimit = decimal.New(1, 12)
)

// checkStored rejects values the decimal(14,4) columns would round or
// overflow, so what is validated is what gets persisted.
func checkStored(d decimal.Decimal, field string) error {
	if !d.Equal(d.Truncate(storedScale)) {
		return validation("%s must have at most %d decimal places", field, storedScale)
	}
	if d.Abs().GreaterThanOrEqual(storedLimit) {
		return validation("%s is out of range", field)
	}
	return nil
}
