package settlement

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/numeric"
)

var btcAssets = market.AssetContext{
	SyntheticAssetID:     "0x4254432d3600000000000000000000",
	SyntheticResolution:  100_000_000,
	CollateralAssetID:    "0x1",
	CollateralResolution: 1_000_000,
	PositionID:           10002,
}

func goldenIntent(side Side) Intent {
	return Intent{
		Side:         side,
		Price:        decimal.NewFromInt(93050),
		Quantity:     decimal.RequireFromString("0.05234"),
		FeeRate:      decimal.RequireFromString("0.0005"),
		Nonce:        12345678901234567890,
		ExpiryMillis: 1_800_000_000_000,
	}
}

func TestCanonicalizeGolden(t *testing.T) {
	got, err := Canonicalize(goldenIntent(Buy), btcAssets)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}

	want := CanonicalAmounts{Synthetic: 5_234_000, Collateral: -4_870_237_000, Fee: 2_435_119}
	if got != want {
		t.Errorf("Canonicalize = %+v, want %+v", got, want)
	}
}

func TestCanonicalizeSellInvertsSigns(t *testing.T) {
	buy, err := Canonicalize(goldenIntent(Buy), btcAssets)
	if err != nil {
		t.Fatalf("Canonicalize buy failed: %v", err)
	}
	sell, err := Canonicalize(goldenIntent(Sell), btcAssets)
	if err != nil {
		t.Fatalf("Canonicalize sell failed: %v", err)
	}

	if sell.Synthetic != -buy.Synthetic || sell.Collateral != -buy.Collateral {
		t.Errorf("sell = %+v, buy = %+v, want inverted signs", sell, buy)
	}
	if sell.Fee != buy.Fee {
		t.Errorf("sell fee = %d, buy fee = %d, want equal", sell.Fee, buy.Fee)
	}
	if sell.Synthetic >= 0 || sell.Collateral <= 0 {
		t.Errorf("sell signs wrong: %+v", sell)
	}
}

func TestCanonicalizeSignInvariants(t *testing.T) {
	quantities := []string{"0.00001", "1", "3.14159", "250.5"}
	prices := []string{"0.1", "1", "93050", "1999.99"}

	for _, q := range quantities {
		for _, p := range prices {
			in := goldenIntent(Buy)
			in.Quantity = decimal.RequireFromString(q)
			in.Price = decimal.RequireFromString(p)

			buy, err := Canonicalize(in, btcAssets)
			if err != nil {
				t.Fatalf("Canonicalize(%s @ %s) failed: %v", q, p, err)
			}
			if buy.Synthetic <= 0 || buy.Collateral >= 0 {
				t.Errorf("buy %s @ %s: signs wrong: %+v", q, p, buy)
			}

			in.Side = Sell
			sell, _ := Canonicalize(in, btcAssets)
			if sell.Synthetic >= 0 || sell.Collateral <= 0 {
				t.Errorf("sell %s @ %s: signs wrong: %+v", q, p, sell)
			}
		}
	}
}

func TestFeeCeiling(t *testing.T) {
	in := goldenIntent(Buy)
	in.Price = decimal.NewFromInt(1)
	in.Quantity = decimal.RequireFromString("0.001")
	in.FeeRate = decimal.RequireFromString("0.0001")

	// 0.0001 * 0.001 * 1e6 = 0.1 units, rounded up to 1
	got, err := Canonicalize(in, btcAssets)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if got.Fee != 1 {
		t.Errorf("fee = %d, want 1", got.Fee)
	}

	in.FeeRate = decimal.Zero
	got, _ = Canonicalize(in, btcAssets)
	if got.Fee != 0 {
		t.Errorf("zero fee rate: fee = %d, want 0", got.Fee)
	}
}

func TestCanonicalizeNegativeFeeRate(t *testing.T) {
	for _, side := range []Side{Buy, Sell} {
		in := goldenIntent(side)
		in.FeeRate = decimal.RequireFromString("-0.0005")
		got, err := Canonicalize(in, btcAssets)
		if err != nil {
			t.Fatalf("%s: Canonicalize failed: %v", side, err)
		}
		if got.Fee != 2_435_119 {
			t.Errorf("%s: fee = %d, want 2435119", side, got.Fee)
		}
	}
}

func TestCanonicalizeOverflow(t *testing.T) {
	in := goldenIntent(Buy)
	// 1e11 * 1e8 exceeds 2^63-1
	in.Quantity = decimal.RequireFromString("100000000000")

	_, err := Canonicalize(in, btcAssets)
	if !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("err = %v, want ErrAmountOverflow", err)
	}

	in = goldenIntent(Sell)
	in.Price = decimal.RequireFromString("1e15")
	_, err = Canonicalize(in, btcAssets)
	if !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("collateral err = %v, want ErrAmountOverflow", err)
	}
}

func TestCanonicalizeInvalidResolution(t *testing.T) {
	assets := btcAssets
	assets.SyntheticResolution = 0
	if _, err := Canonicalize(goldenIntent(Buy), assets); !errors.Is(err, ErrInvalidResolution) {
		t.Errorf("err = %v, want ErrInvalidResolution", err)
	}

	assets = btcAssets
	assets.CollateralResolution = -1_000_000
	if _, err := Canonicalize(goldenIntent(Buy), assets); !errors.Is(err, ErrInvalidResolution) {
		t.Errorf("err = %v, want ErrInvalidResolution", err)
	}
}

func TestCanonicalizeInvalidInput(t *testing.T) {
	in := goldenIntent(Buy)
	in.Side = "HOLD"
	if _, err := Canonicalize(in, btcAssets); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown side err = %v, want ErrInvalidInput", err)
	}

	in = goldenIntent(Buy)
	in.Quantity = decimal.RequireFromString("-1")
	if _, err := Canonicalize(in, btcAssets); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative quantity err = %v, want ErrInvalidInput", err)
	}
}

func TestCanonicalizeWithPolicy(t *testing.T) {
	in := goldenIntent(Buy)
	in.Quantity = decimal.RequireFromString("0.000000015")

	nearest, _ := Canonicalize(in, btcAssets)
	if nearest.Synthetic != 2 {
		t.Errorf("nearest synthetic = %d, want 2", nearest.Synthetic)
	}

	policy := DefaultRoundingPolicy
	policy.Synthetic = numeric.Down
	down, err := CanonicalizeWithPolicy(in, btcAssets, policy)
	if err != nil {
		t.Fatalf("CanonicalizeWithPolicy failed: %v", err)
	}
	if down.Synthetic != 1 {
		t.Errorf("down synthetic = %d, want 1", down.Synthetic)
	}
}

func TestCanonicalizeUnknownMode(t *testing.T) {
	policy := DefaultRoundingPolicy
	policy.Collateral = numeric.RoundingMode(42)

	_, err := CanonicalizeWithPolicy(goldenIntent(Buy), btcAssets, policy)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if errors.Is(err, ErrAmountOverflow) || errors.Is(err, ErrInvalidResolution) {
		t.Errorf("err = %v matches more than one sentinel", err)
	}

	if _, err := CollateralUnits(decimal.NewFromInt(1), 1_000_000, numeric.RoundingMode(-1)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("CollateralUnits err = %v, want ErrInvalidInput", err)
	}
}

func TestHumanFee(t *testing.T) {
	a := CanonicalAmounts{Fee: 2_435_119}
	if got := a.HumanFee(1_000_000); !got.Equal(decimal.RequireFromString("2.435119")) {
		t.Errorf("HumanFee = %s, want 2.435119", got)
	}
}

func TestCollateralUnits(t *testing.T) {
	got, err := CollateralUnits(decimal.RequireFromString("25.0000009"), 1_000_000, DefaultRoundingPolicy.Transfer)
	if err != nil {
		t.Fatalf("CollateralUnits failed: %v", err)
	}
	if got != 25_000_000 {
		t.Errorf("CollateralUnits = %d, want 25000000", got)
	}

	for _, bad := range []string{"0", "-5", "0.0000001"} {
		if _, err := CollateralUnits(decimal.RequireFromString(bad), 1_000_000, numeric.Down); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("CollateralUnits(%s) err = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestSettlementExpiration(t *testing.T) {
	tests := []struct {
		expiry int64
		want   uint64
	}{
		{0, 1_209_600},
		{1, 1_209_601},
		{1000, 1_209_601},
		{1001, 1_209_602},
		{1_800_000_000_000, 1_801_209_600},
		{1_800_000_000_001, 1_801_209_601},
	}

	for _, tt := range tests {
		got, err := SettlementExpiration(tt.expiry)
		if err != nil {
			t.Fatalf("SettlementExpiration(%d) failed: %v", tt.expiry, err)
		}
		if got != tt.want {
			t.Errorf("SettlementExpiration(%d) = %d, want %d", tt.expiry, got, tt.want)
		}
	}
}

func TestSettlementExpirationMonotonic(t *testing.T) {
	var prev uint64
	for e := int64(1_700_000_000_000); e < 1_700_000_010_000; e += 137 {
		got, err := SettlementExpiration(e)
		if err != nil {
			t.Fatalf("SettlementExpiration(%d) failed: %v", e, err)
		}
		if got < prev {
			t.Fatalf("not monotonic at %d: %d < %d", e, got, prev)
		}
		prev = got
	}
}

func TestSettlementExpirationInvalid(t *testing.T) {
	if _, err := SettlementExpiration(-1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative expiry err = %v, want ErrInvalidInput", err)
	}
	if _, err := SettlementExpiration(1<<63 - 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("max expiry err = %v, want ErrInvalidInput", err)
	}
}

func TestParseSide(t *testing.T) {
	if s, err := ParseSide("buy"); err != nil || s != Buy {
		t.Errorf("ParseSide(buy) = %v, %v", s, err)
	}
	if s, err := ParseSide(" Sell "); err != nil || s != Sell {
		t.Errorf("ParseSide(Sell) = %v, %v", s, err)
	}
	if _, err := ParseSide("long"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ParseSide(long) err = %v, want ErrInvalidInput", err)
	}
	if Buy.Opposite() != Sell || Sell.Opposite() != Buy {
		t.Error("Opposite mismatch")
	}
}
