package api

import (
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/settlement"
	"github.com/uhyunpark/starksettle/pkg/signing"
	"github.com/uhyunpark/starksettle/pkg/transaction"
)

// API request and response types for the signing endpoints
// Amounts travel as decimal strings, never floats

// ==============================
// Request Types
// ==============================

// SignOrderRequest is an order in human units to be signed
type SignOrderRequest struct {
	Market            string                          `json:"market"` // e.g., "BTC-USD"
	Side              settlement.Side                 `json:"side"`   // "BUY" or "SELL"
	Type              transaction.OrderType           `json:"type,omitempty"`
	Price             decimal.Decimal                 `json:"price"`
	Qty               decimal.Decimal                 `json:"qty"`
	Fee               *decimal.Decimal                `json:"fee,omitempty"`   // fee rate, defaults to the configured rate
	Nonce             *uint64                         `json:"nonce,omitempty"` // defaults to server time in millis
	ExpiryEpochMillis *int64                          `json:"expiryEpochMillis,omitempty"`
	TimeInForce       transaction.TimeInForce         `json:"timeInForce,omitempty"`
	ReduceOnly        bool                            `json:"reduceOnly,omitempty"`
	PostOnly          bool                            `json:"postOnly,omitempty"`
	SelfTradeLevel    transaction.SelfTradeProtection `json:"selfTradeProtectionLevel,omitempty"`
	ExternalID        string                          `json:"externalId,omitempty"`
	CancelID          string                          `json:"cancelId,omitempty"`
	PositionID        string                          `json:"positionId,omitempty"` // defaults to the configured vault
	RoundToGrid       bool                            `json:"roundToGrid,omitempty"`
}

// SignWithdrawalRequest is a collateral withdrawal to a Starknet address
type SignWithdrawalRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Recipient         string          `json:"recipient"`
	Nonce             uint64          `json:"nonce"`
	ExpiryEpochMillis *int64          `json:"expiryEpochMillis,omitempty"`
	PositionID        string          `json:"positionId,omitempty"`
}

// SignTransferRequest is a collateral transfer to another position
type SignTransferRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	RecipientAccountID string          `json:"recipientAccountId"`
	Nonce              uint64          `json:"nonce"`
	ExpiryEpochMillis  *int64          `json:"expiryEpochMillis,omitempty"`
	PositionID         string          `json:"positionId,omitempty"`
}

// VerifyOrderRequest is a signed order to check against a position
type VerifyOrderRequest struct {
	Order      *transaction.CreateOrderRequest `json:"order"`
	PositionID string                          `json:"positionId,omitempty"`
}

// ==============================
// Response Types
// ==============================

// MarketInfo represents a market's signing-relevant configuration
type MarketInfo struct {
	Name          string               `json:"name"`
	Status        market.Status        `json:"status"`
	Tradable      bool                 `json:"tradable"`
	TradingConfig market.TradingConfig `json:"tradingConfig"`
	L2Config      market.L2Config      `json:"l2Config"`
}

// KeyInfo describes the signing key and domain
type KeyInfo struct {
	PublicKey  string         `json:"publicKey"`
	Status     string         `json:"status"` // "unverified", "verified", "mismatch"
	PositionID uint32         `json:"positionId"`
	Domain     signing.Domain `json:"domain"`
}

// VerifyResponse reports a verification outcome
type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status    string `json:"status"`
	KeyStatus string `json:"keyStatus"`
	Markets   int    `json:"markets"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func newMarketInfo(m *market.Market) MarketInfo {
	return MarketInfo{
		Name:          m.Name,
		Status:        m.Status,
		Tradable:      m.Status.Tradable(),
		TradingConfig: m.TradingConfig,
		L2Config:      m.L2Config,
	}
}
