package transaction

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/starksettle/pkg/settlement"
)

// OrderType is the venue order type
type OrderType string

const (
	OrderTypeLimit       OrderType = "LIMIT"
	OrderTypeMarket      OrderType = "MARKET"
	OrderTypeConditional OrderType = "CONDITIONAL"
	OrderTypeTPSL        OrderType = "TPSL"
)

// TimeInForce controls how long an order rests on the book
type TimeInForce string

const (
	GoodTillTime      TimeInForce = "GTT" // default
	ImmediateOrCancel TimeInForce = "IOC"
)

// SelfTradeProtection is the self-trade prevention level
type SelfTradeProtection string

const (
	SelfTradeDisabled SelfTradeProtection = "DISABLED" // default
	SelfTradeAccount  SelfTradeProtection = "ACCOUNT"
	SelfTradeClient   SelfTradeProtection = "CLIENT"
)

// Signature is a Stark (r, s) pair, both 0x-prefixed hex
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
}

// Settlement is the signature attachment of a signed order
type Settlement struct {
	Signature          Signature       `json:"signature"`
	StarkKey           string          `json:"starkKey"`           // public key used in the hash (hex)
	CollateralPosition decimal.Decimal `json:"collateralPosition"` // vault id
}

// DebuggingAmounts echoes the canonical amounts that went into the hash
type DebuggingAmounts struct {
	CollateralAmount decimal.Decimal `json:"collateralAmount"`
	FeeAmount        decimal.Decimal `json:"feeAmount"`
	SyntheticAmount  decimal.Decimal `json:"syntheticAmount"`
}

// NewDebuggingAmounts converts canonical amounts for the wire
func NewDebuggingAmounts(a settlement.CanonicalAmounts) *DebuggingAmounts {
	return &DebuggingAmounts{
		CollateralAmount: decimal.NewFromInt(a.Collateral),
		FeeAmount:        decimal.NewFromUint64(a.Fee),
		SyntheticAmount:  decimal.NewFromInt(a.Synthetic),
	}
}

// CreateOrderRequest is the order submitted to the venue
// Settlement and DebuggingAmounts are nil until the order is signed
type CreateOrderRequest struct {
	ID                       string              `json:"id"` // external id or nonce, then the order hash
	Market                   string              `json:"market"`
	Side                     settlement.Side     `json:"side"`
	Type                     OrderType           `json:"type"`
	Price                    decimal.Decimal     `json:"price"`
	Quantity                 decimal.Decimal     `json:"qty"`
	ReduceOnly               bool                `json:"reduceOnly"`
	PostOnly                 bool                `json:"postOnly"`
	TimeInForce              TimeInForce         `json:"timeInForce"`
	ExpiryEpochMillis        int64               `json:"expiryEpochMillis"`
	Fee                      decimal.Decimal     `json:"fee"` // fee rate, e.g. 0.0005
	Nonce                    decimal.Decimal     `json:"nonce"`
	SelfTradeProtectionLevel SelfTradeProtection `json:"selfTradeProtectionLevel"`
	CancelID                 string              `json:"cancelId,omitempty"`
	Settlement               *Settlement         `json:"settlement,omitempty"`
	DebuggingAmounts         *DebuggingAmounts   `json:"debuggingAmounts,omitempty"`
}

// Intent extracts the settlement intent from the request
func (r *CreateOrderRequest) Intent() (settlement.Intent, error) {
	nonce, err := NonceValue(r.Nonce)
	if err != nil {
		return settlement.Intent{}, err
	}
	return settlement.Intent{
		Side:         r.Side,
		Price:        r.Price,
		Quantity:     r.Quantity,
		FeeRate:      r.Fee,
		Nonce:        nonce,
		ExpiryMillis: r.ExpiryEpochMillis,
	}, nil
}

// Clone returns a deep copy so signing never mutates the caller's request
func (r *CreateOrderRequest) Clone() *CreateOrderRequest {
	c := *r
	if r.Settlement != nil {
		s := *r.Settlement
		c.Settlement = &s
	}
	if r.DebuggingAmounts != nil {
		d := *r.DebuggingAmounts
		c.DebuggingAmounts = &d
	}
	return &c
}

// IsSigned reports whether a settlement is attached
func (r *CreateOrderRequest) IsSigned() bool {
	return r.Settlement != nil
}

// Validate performs basic validation on the request structure
func (r *CreateOrderRequest) Validate() error {
	if r.Market == "" {
		return fmt.Errorf("%w: missing market", settlement.ErrInvalidInput)
	}
	if r.Side != settlement.Buy && r.Side != settlement.Sell {
		return fmt.Errorf("%w: invalid order side %q", settlement.ErrInvalidInput, r.Side)
	}
	switch r.Type {
	case OrderTypeLimit, OrderTypeMarket, OrderTypeConditional, OrderTypeTPSL:
	default:
		return fmt.Errorf("%w: unknown order type %q", settlement.ErrInvalidInput, r.Type)
	}
	switch r.TimeInForce {
	case GoodTillTime, ImmediateOrCancel:
	default:
		return fmt.Errorf("%w: unknown time in force %q", settlement.ErrInvalidInput, r.TimeInForce)
	}
	if !r.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", settlement.ErrInvalidInput)
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", settlement.ErrInvalidInput)
	}
	if _, err := NonceValue(r.Nonce); err != nil {
		return err
	}
	return nil
}

// NonceValue converts a wire nonce into the unsigned integer that is hashed
func NonceValue(n decimal.Decimal) (uint64, error) {
	if !n.IsInteger() || n.IsNegative() {
		return 0, fmt.Errorf("%w: nonce must be a non-negative integer, got %s", settlement.ErrInvalidInput, n)
	}
	b := n.BigInt()
	if !b.IsUint64() {
		return 0, fmt.Errorf("%w: nonce %s exceeds %d", settlement.ErrInvalidInput, n, uint64(math.MaxUint64))
	}
	return b.Uint64(), nil
}

// Serialize converts the request to JSON bytes
func (r *CreateOrderRequest) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

// DeserializeOrder parses JSON bytes into a CreateOrderRequest
func DeserializeOrder(data []byte) (*CreateOrderRequest, error) {
	var r CreateOrderRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &r, nil
}

// WithdrawalRequest moves collateral from a position to a Starknet address
type WithdrawalRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Recipient         string          `json:"recipient"` // Starknet address (hex)
	Nonce             uint64          `json:"nonce"`
	ExpiryEpochMillis int64           `json:"expiryEpochMillis"`
	Signature         Signature       `json:"signature"`
}

// Serialize converts the request to JSON bytes
func (r *WithdrawalRequest) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

// TransferRequest moves collateral between two positions
type TransferRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	RecipientAccountID string          `json:"recipientAccountId"` // recipient vault id
	Nonce              uint64          `json:"nonce"`
	ExpiryEpochMillis  int64           `json:"expiryEpochMillis"`
	Signature          Signature       `json:"signature"`
}

// Serialize converts the request to JSON bytes
func (r *TransferRequest) Serialize() ([]byte, error) {
	return json.Marshal(r)
}
