package main

import (
	"github.com/spf13/cobra"

	"github.com/uhyunpark/starksettle/pkg/crypto"
	"github.com/uhyunpark/starksettle/pkg/signing"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Inspect and derive Stark keys",
	}
	cmd.AddCommand(newKeyShowCmd(), newKeyDeriveCmd())
	return cmd
}

func newKeyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configured public key and whether it matches the private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			signer, err := signing.NewSignerFromHex(cfg.Account.PrivateKey, cfg.Account.PublicKey, log)
			if err != nil {
				return err
			}
			if _, err := signer.VerifyKey(); err != nil {
				return err
			}
			domain, err := domainFor(cfg)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"publicKey": signer.PublicKeyHex(),
				"status":    signer.Status().String(),
				"vault":     cfg.Account.VaultID,
				"domain":    domain,
			})
		},
	}
}

func newKeyDeriveCmd() *cobra.Command {
	var (
		ethKey       string
		accountIndex int8
		generate     bool
	)

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a sub-account Stark key from an L1 wallet key",
		Long: `Signs the EIP-712 AccountCreation message with the wallet key and grinds
the signature into a Stark private key. The same wallet and index always
yield the same key.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var wallet *crypto.EthSigner
			if generate {
				wallet, err = crypto.GenerateEthKey()
			} else {
				wallet, err = crypto.EthSignerFromHex(ethKey)
			}
			if err != nil {
				return err
			}

			stark, err := crypto.NewOnboarding(cfg.Network.OnboardingDomain).DeriveStarkSigner(wallet, accountIndex)
			if err != nil {
				return err
			}

			out := map[string]any{
				"wallet":          wallet.Address().Hex(),
				"accountIndex":    accountIndex,
				"starkPrivateKey": stark.PrivateKeyHex(),
				"starkPublicKey":  stark.PublicKeyHex(),
			}
			if generate {
				out["walletPrivateKey"] = wallet.PrivateKeyHex()
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().StringVar(&ethKey, "eth-key", "", "L1 wallet private key (hex)")
	cmd.Flags().Int8Var(&accountIndex, "index", 0, "sub-account index")
	cmd.Flags().BoolVar(&generate, "generate", false, "generate a fresh wallet key instead of --eth-key")
	cmd.MarkFlagsMutuallyExclusive("eth-key", "generate")
	cmd.MarkFlagsOneRequired("eth-key", "generate")
	return cmd
}
