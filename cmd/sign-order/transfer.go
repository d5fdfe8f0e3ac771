package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/starksettle/pkg/signing"
)

func newWithdrawCmd() *cobra.Command {
	var (
		amount    string
		recipient string
		nonce     uint64
		expiry    int64
	)

	cmd := &cobra.Command{
		Use:     "withdraw",
		Short:   "Sign a collateral withdrawal to a Starknet address",
		Example: "  sign-order withdraw --amount 25 --recipient 0x5f2a1b3c --nonce 42",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}

			signed, err := s.pipeline.SignWithdrawal(signing.WithdrawalParams{
				Amount:            amt,
				Recipient:         recipient,
				PositionID:        s.cfg.Account.VaultID,
				CollateralAssetID: s.cfg.Account.CollateralAssetID,
				Nonce:             nonce,
				ExpiryMillis:      s.expiryOrDefault(expiry),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, signed)
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "collateral amount, e.g. 25.5")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Starknet recipient address (0x hex)")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "withdrawal nonce")
	cmd.Flags().Int64Var(&expiry, "expiry", 0, "expiry in epoch millis (default now + ORDER_EXPIRY_MS)")
	for _, name := range []string{"amount", "recipient", "nonce"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newTransferCmd() *cobra.Command {
	var (
		amount string
		to     string
		nonce  uint64
		expiry int64
	)

	cmd := &cobra.Command{
		Use:     "transfer",
		Short:   "Sign a collateral transfer to another position",
		Example: "  sign-order transfer --amount 25 --to 20001 --nonce 43",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}

			signed, err := s.pipeline.SignTransfer(signing.TransferParams{
				Amount:              amt,
				RecipientPositionID: to,
				SenderPositionID:    s.cfg.Account.VaultID,
				CollateralAssetID:   s.cfg.Account.CollateralAssetID,
				Nonce:               nonce,
				ExpiryMillis:        s.expiryOrDefault(expiry),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, signed)
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "collateral amount, e.g. 25.5")
	cmd.Flags().StringVar(&to, "to", "", "recipient position id")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "transfer nonce")
	cmd.Flags().Int64Var(&expiry, "expiry", 0, "expiry in epoch millis (default now + ORDER_EXPIRY_MS)")
	for _, name := range []string{"amount", "to", "nonce"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}
