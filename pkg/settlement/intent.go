package settlement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInput covers malformed caller input: unknown side, negative
	// amounts, unparsable identifiers or keys
	ErrInvalidInput = errors.New("invalid input")
	// ErrAmountOverflow is returned when a canonical amount does not fit its 64-bit integer
	ErrAmountOverflow = errors.New("amount overflow")
	// ErrInvalidResolution is returned for asset resolutions that are not positive powers of ten
	ErrInvalidResolution = errors.New("invalid resolution")
)

// Side is the order direction
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide accepts "buy"/"sell" in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrInvalidInput, s)
}

// Opposite returns the other side of the book
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Intent is a user's order in human units, before any rounding or scaling
type Intent struct {
	Side         Side
	Price        decimal.Decimal // collateral per unit of synthetic
	Quantity     decimal.Decimal // synthetic units
	FeeRate      decimal.Decimal // fraction of notional, e.g. 0.0005
	Nonce        uint64
	ExpiryMillis int64 // unix epoch millis
}

// Validate checks the intent for values no rounding mode can repair
func (in Intent) Validate() error {
	if in.Side != Buy && in.Side != Sell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidInput, in.Side)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: negative price %s", ErrInvalidInput, in.Price)
	}
	if in.Quantity.IsNegative() {
		return fmt.Errorf("%w: negative quantity %s", ErrInvalidInput, in.Quantity)
	}
	if in.ExpiryMillis < 0 {
		return fmt.Errorf("%w: negative expiry %d", ErrInvalidInput, in.ExpiryMillis)
	}
	return nil
}
