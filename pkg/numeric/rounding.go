package numeric

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingMode selects the direction used when a value is not representable
// on the target grid or integer scale
type RoundingMode int

const (
	// Down rounds toward negative infinity
	Down RoundingMode = iota
	// Up rounds toward positive infinity
	Up
	// Nearest rounds to the closest value, ties away from zero
	Nearest
)

func (m RoundingMode) String() string {
	switch m {
	case Down:
		return "DOWN"
	case Up:
		return "UP"
	case Nearest:
		return "NEAREST"
	default:
		return "UNKNOWN"
	}
}

// ParseRoundingMode accepts "down", "up" or "nearest" in any case
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "down":
		return Down, nil
	case "up":
		return Up, nil
	case "nearest":
		return Nearest, nil
	}
	return Down, fmt.Errorf("unknown rounding mode %q", s)
}

var (
	// ErrInvalidGrid is returned for a zero or negative tick/step size
	ErrInvalidGrid = errors.New("grid size must be positive")
	// ErrInvalidScale is returned for a resolution that is not a positive power of ten
	ErrInvalidScale = errors.New("resolution must be a positive power of ten")
	// ErrOverflow is returned when a scaled value does not fit the target integer
	ErrOverflow = errors.New("value out of range")
	// ErrUnknownMode is returned for a RoundingMode outside Down/Up/Nearest
	ErrUnknownMode = errors.New("unknown rounding mode")
)

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)

	maxUint64 = new(big.Int).SetUint64(math.MaxUint64)
)

// RoundToGrid snaps value onto the nearest multiple of grid in the given
// direction. Values already on the grid are returned unchanged.
func RoundToGrid(value, grid decimal.Decimal, mode RoundingMode) (decimal.Decimal, error) {
	if !grid.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidGrid, grid)
	}

	// q truncates toward zero, r carries the sign of value
	q, r := value.QuoRem(grid, 0)
	if r.IsZero() {
		return value, nil
	}

	switch mode {
	case Down:
		if r.IsNegative() {
			q = q.Sub(one)
		}
	case Up:
		if r.IsPositive() {
			q = q.Add(one)
		}
	case Nearest:
		if r.Abs().Mul(two).GreaterThanOrEqual(grid) {
			if r.IsNegative() {
				q = q.Sub(one)
			} else {
				q = q.Add(one)
			}
		}
	default:
		return decimal.Zero, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}

	return q.Mul(grid), nil
}

// Round rounds value to an integer using mode
func Round(value decimal.Decimal, mode RoundingMode) (decimal.Decimal, error) {
	switch mode {
	case Down:
		return value.RoundFloor(0), nil
	case Up:
		return value.RoundCeil(0), nil
	case Nearest:
		return value.Round(0), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
}

// ValidateResolution checks that resolution is 10^k for some k >= 0
func ValidateResolution(resolution int64) error {
	if resolution <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidScale, resolution)
	}
	for r := resolution; r > 1; r /= 10 {
		if r%10 != 0 {
			return fmt.Errorf("%w: got %d", ErrInvalidScale, resolution)
		}
	}
	return nil
}

// ToScaledInt64 computes mode(amount * resolution) as a signed 64-bit integer
func ToScaledInt64(amount decimal.Decimal, resolution int64, mode RoundingMode) (int64, error) {
	scaled, err := scale(amount, resolution, mode)
	if err != nil {
		return 0, err
	}
	if !scaled.IsInt64() {
		return 0, fmt.Errorf("%w: %s does not fit int64", ErrOverflow, scaled)
	}
	return scaled.Int64(), nil
}

// ToScaledUint64 computes mode(amount * resolution) as an unsigned 64-bit
// integer. Negative results are reported as overflow.
func ToScaledUint64(amount decimal.Decimal, resolution int64, mode RoundingMode) (uint64, error) {
	scaled, err := scale(amount, resolution, mode)
	if err != nil {
		return 0, err
	}
	if scaled.Sign() < 0 || scaled.Cmp(maxUint64) > 0 {
		return 0, fmt.Errorf("%w: %s does not fit uint64", ErrOverflow, scaled)
	}
	return scaled.Uint64(), nil
}

func scale(amount decimal.Decimal, resolution int64, mode RoundingMode) (*big.Int, error) {
	if err := ValidateResolution(resolution); err != nil {
		return nil, err
	}
	rounded, err := Round(amount.Mul(decimal.NewFromInt(resolution)), mode)
	if err != nil {
		return nil, err
	}
	return rounded.BigInt(), nil
}

// Precision returns the number of fractional digits needed to print grid
// exactly, e.g. 0.001 -> 3 and 5 -> 0
func Precision(grid decimal.Decimal) int32 {
	exp := grid.Exponent()
	if exp >= 0 {
		return 0
	}
	// strip trailing zeros carried in the coefficient
	coeff := grid.Coefficient()
	ten := big.NewInt(10)
	mod := new(big.Int)
	for exp < 0 {
		q, m := new(big.Int).QuoRem(coeff, ten, mod)
		if m.Sign() != 0 {
			break
		}
		coeff = q
		exp++
	}
	return -exp
}
