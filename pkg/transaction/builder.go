package transaction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/settlement"
	"github.com/uhyunpark/starksettle/pkg/util"
)

// DefaultFeeRate is the standard taker fee tier (5 bps)
var DefaultFeeRate = decimal.New(5, -4)

// DefaultExpiry is how long an order lives when no expiry is set
const DefaultExpiry = time.Hour

// OrderBuilder assembles an unsigned CreateOrderRequest
// Omitted fields get defaults at Build time: nonce from the clock in millis,
// expiry one hour out, fee DefaultFeeRate
type OrderBuilder struct {
	market      string
	side        settlement.Side
	orderType   OrderType
	price       decimal.Decimal
	quantity    decimal.Decimal
	fee         decimal.Decimal
	nonce       *uint64
	timeInForce TimeInForce
	reduceOnly  bool
	postOnly    bool
	externalID  string
	expiry      *int64
	selfTrade   SelfTradeProtection
	cancelID    string

	grid   *market.TradingConfig
	policy market.GridPolicy
	clock  util.Clock
}

// NewLimitOrder starts a GTT limit order
func NewLimitOrder(marketName string, side settlement.Side, price, quantity decimal.Decimal) *OrderBuilder {
	return &OrderBuilder{
		market:      marketName,
		side:        side,
		orderType:   OrderTypeLimit,
		price:       price,
		quantity:    quantity,
		fee:         DefaultFeeRate,
		timeInForce: GoodTillTime,
		selfTrade:   SelfTradeDisabled,
		policy:      market.DefaultGridPolicy,
		clock:       util.RealClock{},
	}
}

// NewMarketOrder starts an IOC market order; price is the worst acceptable price
func NewMarketOrder(marketName string, side settlement.Side, price, quantity decimal.Decimal) *OrderBuilder {
	b := NewLimitOrder(marketName, side, price, quantity)
	b.orderType = OrderTypeMarket
	b.timeInForce = ImmediateOrCancel
	return b
}

func (b *OrderBuilder) TimeInForce(tif TimeInForce) *OrderBuilder {
	b.timeInForce = tif
	return b
}

func (b *OrderBuilder) ReduceOnly(v bool) *OrderBuilder {
	b.reduceOnly = v
	return b
}

func (b *OrderBuilder) PostOnly(v bool) *OrderBuilder {
	b.postOnly = v
	return b
}

// ExternalID sets the client id used until the order hash replaces it
func (b *OrderBuilder) ExternalID(id string) *OrderBuilder {
	b.externalID = id
	return b
}

// Expiry sets the order expiry in epoch millis
func (b *OrderBuilder) Expiry(epochMillis int64) *OrderBuilder {
	b.expiry = &epochMillis
	return b
}

func (b *OrderBuilder) SelfTradeProtection(level SelfTradeProtection) *OrderBuilder {
	b.selfTrade = level
	return b
}

// Fee overrides the fee rate
func (b *OrderBuilder) Fee(rate decimal.Decimal) *OrderBuilder {
	b.fee = rate
	return b
}

func (b *OrderBuilder) Nonce(nonce uint64) *OrderBuilder {
	b.nonce = &nonce
	return b
}

// Replaces marks the order as a replacement of cancelID
func (b *OrderBuilder) Replaces(cancelID string) *OrderBuilder {
	b.cancelID = cancelID
	return b
}

// OnGrid snaps price and quantity onto the market's tick and step grid at Build
func (b *OrderBuilder) OnGrid(cfg market.TradingConfig, policy market.GridPolicy) *OrderBuilder {
	b.grid = &cfg
	b.policy = policy
	return b
}

// WithClock replaces the wall clock used for defaults
func (b *OrderBuilder) WithClock(c util.Clock) *OrderBuilder {
	b.clock = c
	return b
}

// Build returns the unsigned request
func (b *OrderBuilder) Build() (*CreateOrderRequest, error) {
	price, qty := b.price, b.quantity
	if b.grid != nil {
		var err error
		price, qty, err = b.grid.Normalize(price, qty, b.policy)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize order: %w", err)
		}
	}

	nowMillis := util.UnixMillis(b.clock)

	var nonce uint64
	if b.nonce != nil {
		nonce = *b.nonce
	} else {
		nonce = uint64(nowMillis)
	}

	expiry := nowMillis + DefaultExpiry.Milliseconds()
	if b.expiry != nil {
		expiry = *b.expiry
	}

	id := b.externalID
	if id == "" {
		id = fmt.Sprintf("%d", nonce)
	}

	req := &CreateOrderRequest{
		ID:                       id,
		Market:                   b.market,
		Side:                     b.side,
		Type:                     b.orderType,
		Price:                    price,
		Quantity:                 qty,
		ReduceOnly:               b.reduceOnly,
		PostOnly:                 b.postOnly,
		TimeInForce:              b.timeInForce,
		ExpiryEpochMillis:        expiry,
		Fee:                      b.fee,
		Nonce:                    decimal.NewFromUint64(nonce),
		SelfTradeProtectionLevel: b.selfTrade,
		CancelID:                 b.cancelID,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
