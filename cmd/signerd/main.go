package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uhyunpark/starksettle/params"
	"github.com/uhyunpark/starksettle/pkg/api"
	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/signing"
	"github.com/uhyunpark/starksettle/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("") // "" means load from .env in current directory
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Setup logging (write to both console and rotated file)
	logger, err := util.NewLoggerWithFile(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Logging.File, "level", cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("config_invalid", "err", err)
	}

	// ---- Markets ----
	markets, err := market.LoadRegistry(cfg.MarketsFile)
	if err != nil {
		sugar.Fatalw("markets_load_failed", "file", cfg.MarketsFile, "err", err)
	}
	sugar.Infow("markets_loaded", "file", cfg.MarketsFile, "count", markets.Count())

	// ---- Signer ----
	signer, err := signing.NewSignerFromHex(cfg.Account.PrivateKey, cfg.Account.PublicKey, sugar)
	if err != nil {
		sugar.Fatalw("signer_init_failed", "err", err)
	}
	// A mismatch is logged by VerifyKey and does not stop the service
	if _, err := signer.VerifyKey(); err != nil {
		sugar.Warnw("key_verification_failed", "err", err)
	}
	positionID, err := signing.ParsePositionID(cfg.Account.VaultID)
	if err != nil {
		sugar.Fatalw("vault_id_invalid", "vault", cfg.Account.VaultID, "err", err)
	}

	// ---- Pipeline ----
	domain, err := signing.DomainForNetwork(cfg.Network.Name)
	if err != nil {
		sugar.Fatalw("network_invalid", "network", cfg.Network.Name, "err", err)
	}
	domain = domain.Override(cfg.Network.DomainName, cfg.Network.DomainVersion, cfg.Network.DomainChainID, cfg.Network.DomainRevision)

	pipeline, err := signing.NewPipeline(signer, domain, signing.WithLogger(sugar))
	if err != nil {
		sugar.Fatalw("pipeline_init_failed", "err", err)
	}

	sugar.Infow("signer_starting",
		"network", cfg.Network.Name,
		"chain_id", domain.ChainID,
		"public_key", signer.PublicKeyHex(),
		"key_status", signer.Status().String(),
		"position_id", positionID)

	// ---- API Server ----
	apiServer := api.NewServer(pipeline, markets, api.Config{
		PositionID:  positionID,
		AssetID:     cfg.Account.CollateralAssetID,
		FeeRate:     &cfg.Orders.DefaultFeeRate,
		Expiry:      cfg.Orders.Expiry,
		GridPolicy:  market.DefaultGridPolicy,
		CORSOrigins: cfg.API.CORSOrigins,
		RateLimit:   cfg.API.RateLimit,
		RateBurst:   cfg.API.RateBurst,
		Clock:       util.RealClock{},
	}, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := apiServer.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutdown_signal_received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("api_server_shutdown_failed", "err", err)
	}
	sugar.Info("signer_stopped")
}
