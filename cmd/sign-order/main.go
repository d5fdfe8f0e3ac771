package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uhyunpark/starksettle/params"
	"github.com/uhyunpark/starksettle/pkg/signing"
	"github.com/uhyunpark/starksettle/pkg/util"
)

var (
	envFile  string
	network  string
	logLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sign-order",
		Short: "Sign perpetuals orders, withdrawals and transfers with a Stark key",
		Long: `Offline signer for Starknet perpetuals settlement requests.
Keys and defaults come from the environment or a .env file
(STARK_PRIVATE_KEY, STARK_PUBLIC_KEY, STARK_VAULT_ID, STARK_NETWORK, MARKETS_FILE).`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file (default is ./.env)")
	rootCmd.PersistentFlags().StringVar(&network, "network", "", "mainnet or testnet (overrides STARK_NETWORK)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")

	rootCmd.AddCommand(newOrderCmd(), newVerifyCmd(), newWithdrawCmd(), newTransferCmd(), newKeyCmd())
	return rootCmd
}

// session is everything a signing command needs, loaded from config
type session struct {
	cfg        params.Config
	log        *zap.SugaredLogger
	signer     *signing.Signer
	pipeline   *signing.Pipeline
	positionID uint32
}

func loadConfig() (params.Config, error) {
	cfg, err := params.LoadFromEnv(envFile)
	if err != nil {
		return cfg, err
	}
	if network != "" {
		cfg.Network.Name = network
	}
	return cfg, nil
}

func newLogger() (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	cfg.Level = level
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func domainFor(cfg params.Config) (signing.Domain, error) {
	domain, err := signing.DomainForNetwork(cfg.Network.Name)
	if err != nil {
		return signing.Domain{}, err
	}
	return domain.Override(cfg.Network.DomainName, cfg.Network.DomainVersion, cfg.Network.DomainChainID, cfg.Network.DomainRevision), nil
}

func newSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	signer, err := signing.NewSignerFromHex(cfg.Account.PrivateKey, cfg.Account.PublicKey, log)
	if err != nil {
		return nil, err
	}
	if _, err := signer.VerifyKey(); err != nil {
		return nil, err
	}
	positionID, err := signing.ParsePositionID(cfg.Account.VaultID)
	if err != nil {
		return nil, err
	}
	domain, err := domainFor(cfg)
	if err != nil {
		return nil, err
	}
	pipeline, err := signing.NewPipeline(signer, domain, signing.WithLogger(log))
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:        cfg,
		log:        log,
		signer:     signer,
		pipeline:   pipeline,
		positionID: positionID,
	}, nil
}

// expiryOrDefault returns millis, or now plus the configured order lifetime when unset
func (s *session) expiryOrDefault(millis int64) int64 {
	if millis != 0 {
		return millis
	}
	return util.UnixMillis(util.RealClock{}) + s.cfg.Orders.Expiry.Milliseconds()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
