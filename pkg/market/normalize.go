package market

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/starksettle/pkg/numeric"
)

// RoundDown returns floor(value / grid) * grid
func RoundDown(value, grid decimal.Decimal) (decimal.Decimal, error) {
	return numeric.RoundToGrid(value, grid, numeric.Down)
}

// RoundUp returns ceil(value / grid) * grid
func RoundUp(value, grid decimal.Decimal) (decimal.Decimal, error) {
	return numeric.RoundToGrid(value, grid, numeric.Up)
}

// GridPolicy picks the rounding direction for price and quantity when an
// order is snapped onto the market grid. It is independent of the fee
// rounding applied by the settlement canonicalizer.
type GridPolicy struct {
	Price    numeric.RoundingMode
	Quantity numeric.RoundingMode
}

// DefaultGridPolicy floors both price and quantity
var DefaultGridPolicy = GridPolicy{Price: numeric.Down, Quantity: numeric.Down}

// Normalize snaps price to the tick grid and quantity to the step grid
func (c TradingConfig) Normalize(price, qty decimal.Decimal, policy GridPolicy) (decimal.Decimal, decimal.Decimal, error) {
	p, err := numeric.RoundToGrid(price, c.TickSize(), policy.Price)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to round price: %w", err)
	}
	q, err := numeric.RoundToGrid(qty, c.StepSize(), policy.Quantity)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to round quantity: %w", err)
	}
	return p, q, nil
}
