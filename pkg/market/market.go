package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/starksettle/pkg/numeric"
)

// Status is the trading status reported for a market
type Status string

const (
	Active     Status = "ACTIVE"      // All order types permitted
	ReduceOnly Status = "REDUCE_ONLY" // Only reduce-only orders
	Delisted   Status = "DELISTED"    // Trading no longer permitted
	Prelisted  Status = "PRELISTED"   // Trading not yet available
	Disabled   Status = "DISABLED"    // Completely disabled
)

// Tradable reports whether orders may still be signed against a market in this status
func (s Status) Tradable() bool {
	return s == Active || s == ReduceOnly
}

func (s Status) valid() bool {
	switch s {
	case Active, ReduceOnly, Delisted, Prelisted, Disabled:
		return true
	}
	return false
}

// L2Config carries the settlement-layer identifiers of a market
// Asset ids are hex strings, resolutions are powers of ten (10^decimals)
type L2Config struct {
	Type                 string `json:"type" yaml:"type"`                                 // e.g. "STARKNET"
	CollateralID         string `json:"collateralId" yaml:"collateralId"`                 // e.g. "0x1"
	CollateralResolution int64  `json:"collateralResolution" yaml:"collateralResolution"` // e.g. 1000000
	SyntheticID          string `json:"syntheticId" yaml:"syntheticId"`                   // e.g. "0x4254432d3600000000000000000000"
	SyntheticResolution  int64  `json:"syntheticResolution" yaml:"syntheticResolution"`   // e.g. 1000000
}

// TradingConfig holds the order grid and size limits of a market
type TradingConfig struct {
	// MinOrderSize: smallest accepted quantity in base asset
	MinOrderSize decimal.Decimal `json:"minOrderSize" yaml:"minOrderSize"`

	// MinOrderSizeChange: quantity step size
	MinOrderSizeChange decimal.Decimal `json:"minOrderSizeChange" yaml:"minOrderSizeChange"`

	// MinPriceChange: price tick size
	MinPriceChange decimal.Decimal `json:"minPriceChange" yaml:"minPriceChange"`

	MaxLeverage decimal.Decimal `json:"maxLeverage" yaml:"maxLeverage"`
}

// TickSize returns the price grid
func (c TradingConfig) TickSize() decimal.Decimal { return c.MinPriceChange }

// StepSize returns the quantity grid
func (c TradingConfig) StepSize() decimal.Decimal { return c.MinOrderSizeChange }

// RoundPriceDown floors price onto the tick grid
func (c TradingConfig) RoundPriceDown(price decimal.Decimal) (decimal.Decimal, error) {
	return RoundDown(price, c.TickSize())
}

// RoundPriceUp ceils price onto the tick grid
func (c TradingConfig) RoundPriceUp(price decimal.Decimal) (decimal.Decimal, error) {
	return RoundUp(price, c.TickSize())
}

// RoundQtyDown floors quantity onto the step grid
func (c TradingConfig) RoundQtyDown(qty decimal.Decimal) (decimal.Decimal, error) {
	return RoundDown(qty, c.StepSize())
}

// RoundQtyUp ceils quantity onto the step grid
func (c TradingConfig) RoundQtyUp(qty decimal.Decimal) (decimal.Decimal, error) {
	return RoundUp(qty, c.StepSize())
}

// PricePrecision returns the number of fractional digits of the tick size
func (c TradingConfig) PricePrecision() int32 { return numeric.Precision(c.TickSize()) }

// QtyPrecision returns the number of fractional digits of the step size
func (c TradingConfig) QtyPrecision() int32 { return numeric.Precision(c.StepSize()) }

// Validate rejects grids that would make every rounding call fail
func (c TradingConfig) Validate() error {
	if !c.MinPriceChange.IsPositive() {
		return fmt.Errorf("%w: min price change %s", numeric.ErrInvalidGrid, c.MinPriceChange)
	}
	if !c.MinOrderSizeChange.IsPositive() {
		return fmt.Errorf("%w: min order size change %s", numeric.ErrInvalidGrid, c.MinOrderSizeChange)
	}
	if c.MinOrderSize.IsNegative() {
		return fmt.Errorf("min order size must not be negative")
	}
	return nil
}

// Market is the metadata of one perpetual market (e.g. BTC-USD)
type Market struct {
	Name                string        `json:"name" yaml:"name"`                               // "BTC-USD"
	AssetName           string        `json:"assetName" yaml:"assetName"`                     // "BTC"
	AssetPrecision      uint32        `json:"assetPrecision" yaml:"assetPrecision"`           // display digits
	CollateralAssetName string        `json:"collateralAssetName" yaml:"collateralAssetName"` // "USD"
	CollateralPrecision uint32        `json:"collateralAssetPrecision" yaml:"collateralAssetPrecision"`
	Status              Status        `json:"status" yaml:"status"`
	TradingConfig       TradingConfig `json:"tradingConfig" yaml:"tradingConfig"`
	L2Config            L2Config      `json:"l2Config" yaml:"l2Config"`
}

// SyntheticAssetID returns the hex id of the base asset
func (m *Market) SyntheticAssetID() string { return m.L2Config.SyntheticID }

// SyntheticResolution returns the base asset resolution
func (m *Market) SyntheticResolution() int64 { return m.L2Config.SyntheticResolution }

// CollateralAssetID returns the hex id of the collateral asset
func (m *Market) CollateralAssetID() string { return m.L2Config.CollateralID }

// CollateralResolution returns the collateral asset resolution
func (m *Market) CollateralResolution() int64 { return m.L2Config.CollateralResolution }

// Validate checks market metadata before it is used for signing
func (m *Market) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("market name is required")
	}
	if !m.Status.valid() {
		return fmt.Errorf("market %s: unknown status %q", m.Name, m.Status)
	}
	if err := m.TradingConfig.Validate(); err != nil {
		return fmt.Errorf("market %s: %w", m.Name, err)
	}
	if !isHex(m.L2Config.SyntheticID) {
		return fmt.Errorf("market %s: synthetic id %q is not hex", m.Name, m.L2Config.SyntheticID)
	}
	if !isHex(m.L2Config.CollateralID) {
		return fmt.Errorf("market %s: collateral id %q is not hex", m.Name, m.L2Config.CollateralID)
	}
	if err := numeric.ValidateResolution(m.L2Config.SyntheticResolution); err != nil {
		return fmt.Errorf("market %s: synthetic %w", m.Name, err)
	}
	if err := numeric.ValidateResolution(m.L2Config.CollateralResolution); err != nil {
		return fmt.Errorf("market %s: collateral %w", m.Name, err)
	}
	return nil
}

// AssetContext binds the market's settlement identifiers to an account position
func (m *Market) AssetContext(positionID uint32) AssetContext {
	return AssetContext{
		SyntheticAssetID:     m.SyntheticAssetID(),
		SyntheticResolution:  m.SyntheticResolution(),
		CollateralAssetID:    m.CollateralAssetID(),
		CollateralResolution: m.CollateralResolution(),
		PositionID:           positionID,
	}
}

// AssetContext is everything the canonicalizer and preimage assembler need
// to know about the traded assets and the signing account
type AssetContext struct {
	SyntheticAssetID     string `json:"syntheticAssetId"`
	SyntheticResolution  int64  `json:"syntheticResolution"`
	CollateralAssetID    string `json:"collateralAssetId"`
	CollateralResolution int64  `json:"collateralResolution"`
	PositionID           uint32 `json:"positionId"`
}

func isHex(s string) bool {
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if h == "" || len(h) == len(s) {
		return false
	}
	for _, c := range h {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
