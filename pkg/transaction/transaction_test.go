package transaction

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/numeric"
	"github.com/uhyunpark/starksettle/pkg/settlement"
	"github.com/uhyunpark/starksettle/pkg/util"
)

var fixedNow = util.FixedClock{T: time.UnixMilli(1_700_000_000_000)}

func TestOrderBuilderDefaults(t *testing.T) {
	req, err := NewLimitOrder("BTC-USD", settlement.Buy, decimal.NewFromInt(93050), decimal.RequireFromString("0.05234")).
		WithClock(fixedNow).
		Build()
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}

	if req.Nonce.String() != "1700000000000" {
		t.Errorf("nonce = %s, want clock millis", req.Nonce)
	}
	if req.ID != "1700000000000" {
		t.Errorf("id = %s, want nonce", req.ID)
	}
	if req.ExpiryEpochMillis != 1_700_000_000_000+3_600_000 {
		t.Errorf("expiry = %d, want now + 1h", req.ExpiryEpochMillis)
	}
	if !req.Fee.Equal(decimal.RequireFromString("0.0005")) {
		t.Errorf("fee = %s, want 0.0005", req.Fee)
	}
	if req.Type != OrderTypeLimit || req.TimeInForce != GoodTillTime {
		t.Errorf("type/tif = %s/%s, want LIMIT/GTT", req.Type, req.TimeInForce)
	}
	if req.SelfTradeProtectionLevel != SelfTradeDisabled {
		t.Errorf("self trade = %s, want DISABLED", req.SelfTradeProtectionLevel)
	}
	if req.IsSigned() {
		t.Error("built order should not carry a settlement")
	}
}

func TestOrderBuilderOverrides(t *testing.T) {
	req, err := NewLimitOrder("BTC-USD", settlement.Sell, decimal.NewFromInt(100), decimal.NewFromInt(1)).
		Nonce(42).
		Expiry(1_800_000_000_000).
		Fee(decimal.RequireFromString("0.0002")).
		ExternalID("my-order").
		PostOnly(true).
		ReduceOnly(true).
		TimeInForce(ImmediateOrCancel).
		SelfTradeProtection(SelfTradeAccount).
		Replaces("old-order").
		Build()
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}

	if req.ID != "my-order" || req.Nonce.String() != "42" {
		t.Errorf("id/nonce = %s/%s", req.ID, req.Nonce)
	}
	if req.ExpiryEpochMillis != 1_800_000_000_000 {
		t.Errorf("expiry = %d", req.ExpiryEpochMillis)
	}
	if !req.PostOnly || !req.ReduceOnly || req.TimeInForce != ImmediateOrCancel {
		t.Error("flags not applied")
	}
	if req.CancelID != "old-order" || req.SelfTradeProtectionLevel != SelfTradeAccount {
		t.Error("cancel id or self trade level not applied")
	}
}

func TestMarketOrder(t *testing.T) {
	req, err := NewMarketOrder("BTC-USD", settlement.Buy, decimal.NewFromInt(100), decimal.NewFromInt(1)).
		WithClock(fixedNow).
		Build()
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	if req.Type != OrderTypeMarket || req.TimeInForce != ImmediateOrCancel {
		t.Errorf("type/tif = %s/%s, want MARKET/IOC", req.Type, req.TimeInForce)
	}
}

func TestOrderBuilderOnGrid(t *testing.T) {
	cfg := market.TradingConfig{
		MinOrderSize:       decimal.RequireFromString("0.0001"),
		MinOrderSizeChange: decimal.RequireFromString("0.0001"),
		MinPriceChange:     decimal.NewFromInt(1),
		MaxLeverage:        decimal.NewFromInt(50),
	}

	req, err := NewLimitOrder("BTC-USD", settlement.Buy, decimal.RequireFromString("93050.7"), decimal.RequireFromString("0.052349")).
		OnGrid(cfg, market.DefaultGridPolicy).
		WithClock(fixedNow).
		Build()
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	if !req.Price.Equal(decimal.NewFromInt(93050)) {
		t.Errorf("price = %s, want 93050", req.Price)
	}
	if !req.Quantity.Equal(decimal.RequireFromString("0.0523")) {
		t.Errorf("qty = %s, want 0.0523", req.Quantity)
	}

	up := market.GridPolicy{Price: numeric.Up, Quantity: numeric.Up}
	req, err = NewLimitOrder("BTC-USD", settlement.Sell, decimal.RequireFromString("93050.2"), decimal.RequireFromString("0.05231")).
		OnGrid(cfg, up).
		WithClock(fixedNow).
		Build()
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	if !req.Price.Equal(decimal.NewFromInt(93051)) || !req.Quantity.Equal(decimal.RequireFromString("0.0524")) {
		t.Errorf("price/qty = %s/%s, want 93051/0.0524", req.Price, req.Quantity)
	}
}

func TestOrderBuilderRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		builder *OrderBuilder
	}{
		{"zero price", NewLimitOrder("BTC-USD", settlement.Buy, decimal.Zero, decimal.NewFromInt(1))},
		{"negative qty", NewLimitOrder("BTC-USD", settlement.Buy, decimal.NewFromInt(1), decimal.NewFromInt(-1))},
		{"no market", NewLimitOrder("", settlement.Buy, decimal.NewFromInt(1), decimal.NewFromInt(1))},
		{"bad side", NewLimitOrder("BTC-USD", "HOLD", decimal.NewFromInt(1), decimal.NewFromInt(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.WithClock(fixedNow).Build()
			if !errors.Is(err, settlement.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestOrderBuilderAcceptsNegativeFee(t *testing.T) {
	req, err := NewLimitOrder("BTC-USD", settlement.Sell, decimal.NewFromInt(1), decimal.NewFromInt(1)).
		Fee(decimal.RequireFromString("-0.0002")).
		WithClock(fixedNow).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !req.Fee.Equal(decimal.RequireFromString("-0.0002")) {
		t.Errorf("fee = %s, want -0.0002", req.Fee)
	}
}

func TestNonceValue(t *testing.T) {
	n, err := NonceValue(decimal.RequireFromString("12345678901234567890"))
	if err != nil {
		t.Fatalf("failed to read nonce: %v", err)
	}
	if n != 12345678901234567890 {
		t.Errorf("nonce = %d", n)
	}

	for _, bad := range []string{"-1", "1.5", "18446744073709551616"} {
		if _, err := NonceValue(decimal.RequireFromString(bad)); !errors.Is(err, settlement.ErrInvalidInput) {
			t.Errorf("NonceValue(%s) err = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestIntent(t *testing.T) {
	req, err := NewLimitOrder("BTC-USD", settlement.Buy, decimal.NewFromInt(93050), decimal.RequireFromString("0.05234")).
		Nonce(7).
		Expiry(1_800_000_000_000).
		Build()
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	in, err := req.Intent()
	if err != nil {
		t.Fatalf("failed to get intent: %v", err)
	}
	if in.Side != settlement.Buy || in.Nonce != 7 || in.ExpiryMillis != 1_800_000_000_000 {
		t.Errorf("intent = %+v", in)
	}
	if !in.FeeRate.Equal(DefaultFeeRate) {
		t.Errorf("fee rate = %s", in.FeeRate)
	}
}

func TestCloneDoesNotShare(t *testing.T) {
	req := &CreateOrderRequest{
		ID:         "1",
		Settlement: &Settlement{StarkKey: "0x1"},
	}
	c := req.Clone()
	c.ID = "2"
	c.Settlement.StarkKey = "0x2"
	if req.ID != "1" || req.Settlement.StarkKey != "0x1" {
		t.Error("clone shares state with original")
	}
}

func TestOrderJSON(t *testing.T) {
	req, err := NewLimitOrder("BTC-USD", settlement.Buy, decimal.NewFromInt(93050), decimal.RequireFromString("0.05234")).
		Nonce(12345).
		Expiry(1_800_000_000_000).
		Build()
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	req.Settlement = &Settlement{
		Signature:          Signature{R: "0x1", S: "0x2"},
		StarkKey:           "0x3",
		CollateralPosition: decimal.NewFromInt(10002),
	}
	req.DebuggingAmounts = NewDebuggingAmounts(settlement.CanonicalAmounts{Synthetic: 5, Collateral: -6, Fee: 7})

	data, err := req.Serialize()
	if err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	for _, key := range []string{"id", "market", "side", "type", "price", "qty", "timeInForce", "expiryEpochMillis", "fee", "nonce", "selfTradeProtectionLevel", "settlement", "debuggingAmounts"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing json key %q", key)
		}
	}
	if _, ok := raw["cancelId"]; ok {
		t.Error("empty cancelId should be omitted")
	}
	if !strings.Contains(string(data), `"qty":"0.05234"`) {
		t.Errorf("qty not encoded as decimal string: %s", data)
	}

	back, err := DeserializeOrder(data)
	if err != nil {
		t.Fatalf("failed to deserialize: %v", err)
	}
	if back.Settlement.StarkKey != "0x3" || !back.DebuggingAmounts.CollateralAmount.Equal(decimal.NewFromInt(-6)) {
		t.Errorf("round trip lost settlement data: %+v", back)
	}
}
