package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/signing"
	"github.com/uhyunpark/starksettle/pkg/transaction"
	"github.com/uhyunpark/starksettle/pkg/util"
)

const (
	testPrivateKey = "0x3c1e9550e66958296d11b60f8e8e7a7ad990d07fa65d5f7652c4a6c87d4e3cc"
	testPublicKey  = "0x77a3b314db07c45076d11f62b6f9e748a39790441823307743cf00d6597ea43"
)

func btcMarket(status market.Status) *market.Market {
	return &market.Market{
		Name:                "BTC-USD",
		AssetName:           "BTC",
		CollateralAssetName: "USD",
		Status:              status,
		TradingConfig: market.TradingConfig{
			MinOrderSize:       decimal.RequireFromString("0.0001"),
			MinOrderSizeChange: decimal.RequireFromString("0.00001"),
			MinPriceChange:     decimal.NewFromInt(1),
			MaxLeverage:        decimal.NewFromInt(50),
		},
		L2Config: market.L2Config{
			Type:                 "STARKNET",
			CollateralID:         "0x1",
			CollateralResolution: 1_000_000,
			SyntheticID:          "0x4254432d3600000000000000000000",
			SyntheticResolution:  100_000_000,
		},
	}
}

func newTestServer(t *testing.T, cfg Config, markets ...*market.Market) *Server {
	t.Helper()
	signer, err := signing.NewSignerFromHex(testPrivateKey, testPublicKey, nil)
	if err != nil {
		t.Fatalf("failed to load signer: %v", err)
	}
	pipeline, err := signing.NewPipeline(signer, signing.MainnetDomain())
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}

	reg := market.NewRegistry()
	if len(markets) == 0 {
		markets = []*market.Market{btcMarket(market.Active)}
	}
	for _, m := range markets {
		if err := reg.Register(m); err != nil {
			t.Fatalf("failed to register market: %v", err)
		}
	}

	if cfg.PositionID == 0 {
		cfg.PositionID = 10002
	}
	if cfg.Clock == nil {
		cfg.Clock = util.FixedClock{T: time.UnixMilli(1_700_000_000_000)}
	}
	return NewServer(pipeline, reg, cfg, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

const goldenOrderBody = `{
	"market": "BTC-USD",
	"side": "buy",
	"price": "93050",
	"qty": "0.05234",
	"nonce": 12345678901234567890,
	"expiryEpochMillis": 1800000000000
}`

func TestSignOrderEndpoint(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/v1/orders/sign", goldenOrderBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var signed transaction.CreateOrderRequest
	decodeBody(t, rec, &signed)

	if signed.ID != "1746357528673144776208137684133710428040881178642895949872523165307172582647" {
		t.Errorf("id = %s", signed.ID)
	}
	if signed.Settlement == nil {
		t.Fatal("response carries no settlement")
	}
	if signed.Settlement.Signature.R != "0x329a844e298b385ffc2a7850a3216bce7bab69e842b0def3d5c9ca6ef0312ac" {
		t.Errorf("r = %s", signed.Settlement.Signature.R)
	}
	if signed.Settlement.Signature.S != "0x1b03c2882b6bbc5a09eaa55b040f722245c83dfd70eedf6d4ede08fdc45ded" {
		t.Errorf("s = %s", signed.Settlement.Signature.S)
	}
	if signed.Settlement.StarkKey != testPublicKey {
		t.Errorf("stark key = %s", signed.Settlement.StarkKey)
	}
	if !signed.DebuggingAmounts.CollateralAmount.Equal(decimal.NewFromInt(-4870237000)) {
		t.Errorf("collateral amount = %s", signed.DebuggingAmounts.CollateralAmount)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestSignOrderDefaults(t *testing.T) {
	s := newTestServer(t, Config{Expiry: 2 * time.Hour})

	rec := do(t, s, http.MethodPost, "/api/v1/orders/sign", `{"market":"BTC-USD","side":"SELL","price":"100.7","qty":"0.123456","roundToGrid":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var signed transaction.CreateOrderRequest
	decodeBody(t, rec, &signed)

	if signed.Nonce.String() != "1700000000000" {
		t.Errorf("nonce = %s, want clock millis", signed.Nonce)
	}
	if signed.ExpiryEpochMillis != 1_700_000_000_000+2*3_600_000 {
		t.Errorf("expiry = %d, want now + 2h", signed.ExpiryEpochMillis)
	}
	if !signed.Fee.Equal(transaction.DefaultFeeRate) {
		t.Errorf("fee = %s", signed.Fee)
	}
	if !signed.Price.Equal(decimal.NewFromInt(100)) || !signed.Quantity.Equal(decimal.RequireFromString("0.12345")) {
		t.Errorf("price/qty = %s/%s, want grid-rounded 100/0.12345", signed.Price, signed.Quantity)
	}
}

func TestSignOrderZeroFeeRate(t *testing.T) {
	zero := decimal.Zero
	s := newTestServer(t, Config{FeeRate: &zero})

	rec := do(t, s, http.MethodPost, "/api/v1/orders/sign", goldenOrderBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var signed transaction.CreateOrderRequest
	decodeBody(t, rec, &signed)

	if !signed.Fee.IsZero() {
		t.Errorf("fee = %s, want configured 0", signed.Fee)
	}
	if !signed.DebuggingAmounts.FeeAmount.IsZero() {
		t.Errorf("fee amount = %s, want 0", signed.DebuggingAmounts.FeeAmount)
	}
}

func TestSignOrderErrors(t *testing.T) {
	s := newTestServer(t, Config{}, btcMarket(market.Active), func() *market.Market {
		m := btcMarket(market.Delisted)
		m.Name = "ETH-USD"
		return m
	}())

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown market", `{"market":"SOL-USD","side":"BUY","price":"1","qty":"1"}`, http.StatusNotFound, "market_not_found"},
		{"delisted market", `{"market":"ETH-USD","side":"BUY","price":"1","qty":"1"}`, http.StatusBadRequest, "invalid_input"},
		{"bad side", `{"market":"BTC-USD","side":"HOLD","price":"1","qty":"1"}`, http.StatusBadRequest, "invalid_input"},
		{"zero qty", `{"market":"BTC-USD","side":"BUY","price":"1","qty":"0"}`, http.StatusBadRequest, "invalid_input"},
		{"bad position", `{"market":"BTC-USD","side":"BUY","price":"1","qty":"1","positionId":"abc"}`, http.StatusBadRequest, "invalid_input"},
		{"unknown field", `{"market":"BTC-USD","side":"BUY","price":"1","qty":"1","leverage":5}`, http.StatusBadRequest, "invalid_request_body"},
		{"overflow", `{"market":"BTC-USD","side":"BUY","price":"1","qty":"1e20"}`, http.StatusBadRequest, "amount_overflow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/v1/orders/sign", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			var resp ErrorResponse
			decodeBody(t, rec, &resp)
			if resp.Error != tt.code {
				t.Errorf("error = %s, want %s (%s)", resp.Error, tt.code, resp.Message)
			}
			if resp.RequestID == "" {
				t.Error("error response carries no request id")
			}
		})
	}
}

func TestVerifyOrderEndpoint(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/v1/orders/sign", goldenOrderBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("sign status = %d", rec.Code)
	}
	var signed transaction.CreateOrderRequest
	decodeBody(t, rec, &signed)

	body, _ := json.Marshal(VerifyOrderRequest{Order: &signed})
	rec = do(t, s, http.MethodPost, "/api/v1/orders/verify", string(body))
	var resp VerifyResponse
	decodeBody(t, rec, &resp)
	if !resp.Valid {
		t.Errorf("signed order reported invalid: %s", resp.Reason)
	}

	signed.Price = decimal.NewFromInt(93051)
	signed.DebuggingAmounts = nil
	body, _ = json.Marshal(VerifyOrderRequest{Order: &signed})
	rec = do(t, s, http.MethodPost, "/api/v1/orders/verify", string(body))
	resp = VerifyResponse{}
	decodeBody(t, rec, &resp)
	if resp.Valid || resp.Reason == "" {
		t.Errorf("tampered order = %+v, want invalid with reason", resp)
	}
}

func TestSignWithdrawalEndpoint(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/v1/withdrawals/sign", `{"amount":"25","recipient":"0x5f2a1b3c","nonce":42,"expiryEpochMillis":1800000000000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var signed transaction.WithdrawalRequest
	decodeBody(t, rec, &signed)

	if signed.Signature.R != "0x2ed71dda4ab104bc9652c261063b5553defc58c4b28a9bd8e1c3a3a594e2062" {
		t.Errorf("r = %s", signed.Signature.R)
	}
	if signed.Signature.S != "0x3e5935ab3964b912dd71819dc44bcd05f4fa0e89acc724df1693c19778d0476" {
		t.Errorf("s = %s", signed.Signature.S)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/withdrawals/sign", `{"amount":"25","recipient":"5f2a1b3c","nonce":42}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unprefixed recipient status = %d, want 400", rec.Code)
	}
}

func TestSignTransferEndpoint(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, "/api/v1/transfers/sign", `{"amount":"25","recipientAccountId":"20001","nonce":43,"expiryEpochMillis":1800000000000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var signed transaction.TransferRequest
	decodeBody(t, rec, &signed)

	if signed.Signature.R != "0x6f7a211e96c67246b27725b506d42c7e72352ba8952091c1055057169e91d85" {
		t.Errorf("r = %s", signed.Signature.R)
	}
	if signed.Signature.S != "0x2addad150b006b8625ffcb4e16aac727381a915efa7ca8ab1110c4db3a51618" {
		t.Errorf("s = %s", signed.Signature.S)
	}
}

func TestReadEndpoints(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodGet, "/api/v1/markets", "")
	var markets []MarketInfo
	decodeBody(t, rec, &markets)
	if len(markets) != 1 || markets[0].Name != "BTC-USD" || !markets[0].Tradable {
		t.Errorf("markets = %+v", markets)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/markets/BTC-USD", "")
	var m MarketInfo
	decodeBody(t, rec, &m)
	if m.L2Config.SyntheticID != "0x4254432d3600000000000000000000" {
		t.Errorf("synthetic id = %s", m.L2Config.SyntheticID)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/markets/SOL-USD", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown market status = %d, want 404", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/key", "")
	var key KeyInfo
	decodeBody(t, rec, &key)
	if key.PublicKey != testPublicKey || key.PositionID != 10002 || key.Domain.ChainID != "SN_MAIN" {
		t.Errorf("key = %+v", key)
	}

	rec = do(t, s, http.MethodGet, "/health", "")
	var health HealthResponse
	decodeBody(t, rec, &health)
	if health.Status != "ok" || health.Markets != 1 {
		t.Errorf("health = %+v", health)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	s := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want caller's id", got)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 2})

	for i := 0; i < 2; i++ {
		if rec := do(t, s, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}
