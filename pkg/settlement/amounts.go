package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/numeric"
)

// CanonicalAmounts are the signed fixed-point integers that enter the
// settlement hash
type CanonicalAmounts struct {
	Synthetic  int64  `json:"syntheticAmount"`  // > 0 for Buy, < 0 for Sell
	Collateral int64  `json:"collateralAmount"` // < 0 for Buy, > 0 for Sell
	Fee        uint64 `json:"feeAmount"`        // never negative
}

// HumanFee converts the fee back to collateral units for display
func (a CanonicalAmounts) HumanFee(collateralResolution int64) decimal.Decimal {
	if collateralResolution <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(a.Fee).Div(decimal.NewFromInt(collateralResolution))
}

// RoundingPolicy fixes the rounding direction of every scaled amount
type RoundingPolicy struct {
	Synthetic  numeric.RoundingMode
	Collateral numeric.RoundingMode
	Fee        numeric.RoundingMode
	// Transfer applies to withdrawal and transfer amounts
	Transfer numeric.RoundingMode
}

// DefaultRoundingPolicy is used by Canonicalize and by the withdrawal and
// transfer signers
var DefaultRoundingPolicy = RoundingPolicy{
	Synthetic:  numeric.Nearest,
	Collateral: numeric.Nearest,
	Fee:        numeric.Up,
	Transfer:   numeric.Down,
}

// Canonicalize converts an intent into settlement integers using DefaultRoundingPolicy
func Canonicalize(in Intent, assets market.AssetContext) (CanonicalAmounts, error) {
	return CanonicalizeWithPolicy(in, assets, DefaultRoundingPolicy)
}

// CanonicalizeWithPolicy converts an intent into settlement integers
//
//	synthetic  = quantity * synthetic_resolution
//	collateral = price * quantity * collateral_resolution
//	fee        = |fee_rate * price * quantity| * collateral_resolution
//
// Buy yields (+synthetic, -collateral), Sell yields (-synthetic, +collateral).
func CanonicalizeWithPolicy(in Intent, assets market.AssetContext, policy RoundingPolicy) (CanonicalAmounts, error) {
	if err := in.Validate(); err != nil {
		return CanonicalAmounts{}, err
	}
	if err := numeric.ValidateResolution(assets.SyntheticResolution); err != nil {
		return CanonicalAmounts{}, fmt.Errorf("%w: synthetic: %v", ErrInvalidResolution, err)
	}
	if err := numeric.ValidateResolution(assets.CollateralResolution); err != nil {
		return CanonicalAmounts{}, fmt.Errorf("%w: collateral: %v", ErrInvalidResolution, err)
	}

	synthetic, err := numeric.ToScaledInt64(in.Quantity, assets.SyntheticResolution, policy.Synthetic)
	if err != nil {
		return CanonicalAmounts{}, wrapScaleError("synthetic amount", err)
	}

	notional := in.Price.Mul(in.Quantity)
	collateral, err := numeric.ToScaledInt64(notional, assets.CollateralResolution, policy.Collateral)
	if err != nil {
		return CanonicalAmounts{}, wrapScaleError("collateral amount", err)
	}

	fee, err := numeric.ToScaledUint64(in.FeeRate.Mul(notional).Abs(), assets.CollateralResolution, policy.Fee)
	if err != nil {
		return CanonicalAmounts{}, wrapScaleError("fee amount", err)
	}

	if in.Side == Buy {
		return CanonicalAmounts{Synthetic: synthetic, Collateral: -collateral, Fee: fee}, nil
	}
	return CanonicalAmounts{Synthetic: -synthetic, Collateral: collateral, Fee: fee}, nil
}

// CollateralUnits scales a withdrawal or transfer amount into collateral
// units. The amount must be positive.
func CollateralUnits(amount decimal.Decimal, resolution int64, mode numeric.RoundingMode) (uint64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidInput, amount)
	}
	if err := numeric.ValidateResolution(resolution); err != nil {
		return 0, fmt.Errorf("%w: collateral: %v", ErrInvalidResolution, err)
	}
	units, err := numeric.ToScaledUint64(amount, resolution, mode)
	if err != nil {
		return 0, wrapScaleError("amount", err)
	}
	if units == 0 {
		return 0, fmt.Errorf("%w: amount %s is below one collateral unit", ErrInvalidInput, amount)
	}
	return units, nil
}

func wrapScaleError(field string, err error) error {
	switch {
	case errors.Is(err, numeric.ErrOverflow):
		return fmt.Errorf("%w: %s: %v", ErrAmountOverflow, field, err)
	case errors.Is(err, numeric.ErrInvalidScale):
		return fmt.Errorf("%w: %s: %v", ErrInvalidResolution, field, err)
	default:
		return fmt.Errorf("%w: failed to scale %s: %v", ErrInvalidInput, field, err)
	}
}
