package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/numeric"
	"github.com/uhyunpark/starksettle/pkg/settlement"
	"github.com/uhyunpark/starksettle/pkg/signing"
	"github.com/uhyunpark/starksettle/pkg/transaction"
)

type orderFlags struct {
	market     string
	side       string
	orderType  string
	price      string
	qty        string
	fee        string
	nonce      uint64
	expiry     int64
	tif        string
	reduceOnly bool
	postOnly   bool
	externalID string
	cancelID   string
	round      string
	preimage   bool
}

func newOrderCmd() *cobra.Command {
	var f orderFlags

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Sign an order against a market from the markets file",
		Example: `  sign-order order --market BTC-USD --side buy --price 93050 --qty 0.05234
  sign-order order --market ETH-USD --side sell --price 3120.55 --qty 1.2 --round up`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			markets, err := market.LoadRegistry(s.cfg.MarketsFile)
			if err != nil {
				return err
			}
			m, err := markets.Get(f.market)
			if err != nil {
				return err
			}

			req, err := f.build(s, m)
			if err != nil {
				return err
			}
			signed, err := s.pipeline.SignMarketOrder(req, m, s.positionID)
			if err != nil {
				return err
			}

			if f.preimage {
				msg, err := s.pipeline.OrderMessage(req, m.AssetContext(s.positionID))
				if err != nil {
					return err
				}
				for i, field := range signing.Preimage(msg, s.signer.PublicKey(), s.pipeline.Domain()) {
					fmt.Fprintf(cmd.ErrOrStderr(), "preimage[%02d] %s\n", i, field)
				}
			}
			return printJSON(cmd, signed)
		},
	}

	cmd.Flags().StringVar(&f.market, "market", "", "market name, e.g. BTC-USD")
	cmd.Flags().StringVar(&f.side, "side", "", "buy or sell")
	cmd.Flags().StringVar(&f.orderType, "type", "limit", "limit or market")
	cmd.Flags().StringVar(&f.price, "price", "", "limit price (worst price for market orders)")
	cmd.Flags().StringVar(&f.qty, "qty", "", "quantity in base asset")
	cmd.Flags().StringVar(&f.fee, "fee", "", "fee rate (default DEFAULT_FEE_RATE)")
	cmd.Flags().Uint64Var(&f.nonce, "nonce", 0, "order nonce (default now in millis)")
	cmd.Flags().Int64Var(&f.expiry, "expiry", 0, "expiry in epoch millis (default now + ORDER_EXPIRY_MS)")
	cmd.Flags().StringVar(&f.tif, "tif", "", "time in force: GTT or IOC")
	cmd.Flags().BoolVar(&f.reduceOnly, "reduce-only", false, "reduce-only order")
	cmd.Flags().BoolVar(&f.postOnly, "post-only", false, "post-only order")
	cmd.Flags().StringVar(&f.externalID, "id", "", "client order id")
	cmd.Flags().StringVar(&f.cancelID, "replaces", "", "id of the order this one replaces")
	cmd.Flags().StringVar(&f.round, "round", "", "snap price and qty onto the market grid: down, up or nearest")
	cmd.Flags().BoolVar(&f.preimage, "preimage", false, "print the hash preimage to stderr")
	for _, name := range []string{"market", "side", "price", "qty"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (f *orderFlags) build(s *session, m *market.Market) (*transaction.CreateOrderRequest, error) {
	side, err := settlement.ParseSide(f.side)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(f.price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", f.price, err)
	}
	qty, err := decimal.NewFromString(f.qty)
	if err != nil {
		return nil, fmt.Errorf("invalid qty %q: %w", f.qty, err)
	}
	fee := s.cfg.Orders.DefaultFeeRate
	if f.fee != "" {
		if fee, err = decimal.NewFromString(f.fee); err != nil {
			return nil, fmt.Errorf("invalid fee %q: %w", f.fee, err)
		}
	}

	var b *transaction.OrderBuilder
	switch f.orderType {
	case "limit", "LIMIT":
		b = transaction.NewLimitOrder(m.Name, side, price, qty)
	case "market", "MARKET":
		b = transaction.NewMarketOrder(m.Name, side, price, qty)
	default:
		return nil, fmt.Errorf("unknown order type %q", f.orderType)
	}

	b = b.Fee(fee).
		Expiry(s.expiryOrDefault(f.expiry)).
		ReduceOnly(f.reduceOnly).
		PostOnly(f.postOnly).
		ExternalID(f.externalID).
		Replaces(f.cancelID)
	if f.nonce != 0 {
		b = b.Nonce(f.nonce)
	}
	if f.tif != "" {
		b = b.TimeInForce(transaction.TimeInForce(f.tif))
	}
	if f.round != "" {
		mode, err := numeric.ParseRoundingMode(f.round)
		if err != nil {
			return nil, err
		}
		b = b.OnGrid(m.TradingConfig, market.GridPolicy{Price: mode, Quantity: mode})
	}
	return b.Build()
}

func newVerifyCmd() *cobra.Command {
	var (
		file       string
		positionID string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signed order JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			order, err := transaction.DeserializeOrder(data)
			if err != nil {
				return err
			}
			markets, err := market.LoadRegistry(cfg.MarketsFile)
			if err != nil {
				return err
			}
			m, err := markets.Get(order.Market)
			if err != nil {
				return err
			}

			if positionID == "" {
				positionID = cfg.Account.VaultID
			}
			if positionID == "" && order.Settlement != nil {
				positionID = order.Settlement.CollateralPosition.String()
			}
			pos, err := signing.ParsePositionID(positionID)
			if err != nil {
				return err
			}
			domain, err := domainFor(cfg)
			if err != nil {
				return err
			}

			err = signing.NewVerifier(domain).VerifyOrder(order, m.AssetContext(pos))
			if errors.Is(err, signing.ErrInvalidSignature) {
				printJSON(cmd, map[string]any{"valid": false, "reason": err.Error()})
				return err
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"valid": true, "id": order.ID})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "signed order JSON")
	cmd.Flags().StringVar(&positionID, "position", "", "expected position id (default STARK_VAULT_ID, then the order's)")
	cmd.MarkFlagRequired("file")
	return cmd
}
