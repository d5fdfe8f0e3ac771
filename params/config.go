package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Network selects the signing domain
type Network struct {
	Name string // "mainnet" or "testnet"
	// Optional per-field domain overrides; empty keeps the network default
	DomainName     string
	DomainVersion  string
	DomainChainID  string
	DomainRevision string
	// Name used in the EIP-712 onboarding domain
	OnboardingDomain string
}

type Account struct {
	PrivateKey        string // Stark private key (hex); never logged
	PublicKey         string // registered Stark key; empty derives it
	VaultID           string // collateral position id
	CollateralAssetID string
}

type Orders struct {
	DefaultFeeRate decimal.Decimal
	Expiry         time.Duration
}

type API struct {
	Addr        string
	CORSOrigins []string
	RateLimit   float64 // signing requests per second; 0 disables
	RateBurst   int
}

type Logging struct {
	File  string
	Level string
}

type Config struct {
	Network     Network
	Account     Account
	Orders      Orders
	API         API
	Logging     Logging
	MarketsFile string
}

func Default() Config {
	return Config{
		Network: Network{
			Name:             "mainnet",
			OnboardingDomain: "extended.exchange",
		},
		Account: Account{
			CollateralAssetID: "0x1",
		},
		Orders: Orders{
			DefaultFeeRate: decimal.New(5, -4), // 5 bps taker
			Expiry:         time.Hour,
		},
		API: API{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
			RateLimit:   50,
			RateBurst:   100,
		},
		Logging: Logging{
			File:  "data/signer.log",
			Level: "info",
		},
		MarketsFile: "markets.yaml",
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Network.Name = getEnv("STARK_NETWORK", cfg.Network.Name)
	cfg.Network.DomainName = os.Getenv("STARK_DOMAIN_NAME")
	cfg.Network.DomainVersion = os.Getenv("STARK_DOMAIN_VERSION")
	cfg.Network.DomainChainID = os.Getenv("STARK_DOMAIN_CHAIN_ID")
	cfg.Network.DomainRevision = os.Getenv("STARK_DOMAIN_REVISION")
	cfg.Network.OnboardingDomain = getEnv("ONBOARDING_DOMAIN", cfg.Network.OnboardingDomain)

	cfg.Account.PrivateKey = os.Getenv("STARK_PRIVATE_KEY")
	cfg.Account.PublicKey = os.Getenv("STARK_PUBLIC_KEY")
	cfg.Account.VaultID = os.Getenv("STARK_VAULT_ID")
	cfg.Account.CollateralAssetID = getEnv("STARK_COLLATERAL_ASSET_ID", cfg.Account.CollateralAssetID)

	if fee := os.Getenv("DEFAULT_FEE_RATE"); fee != "" {
		rate, err := decimal.NewFromString(fee)
		if err != nil {
			return cfg, fmt.Errorf("invalid DEFAULT_FEE_RATE %q: %w", fee, err)
		}
		cfg.Orders.DefaultFeeRate = rate
	}
	if expiry := os.Getenv("ORDER_EXPIRY_MS"); expiry != "" {
		ms, err := strconv.ParseInt(expiry, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid ORDER_EXPIRY_MS %q: %w", expiry, err)
		}
		cfg.Orders.Expiry = time.Duration(ms) * time.Millisecond
	}

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.CORSOrigins = splitList(origins)
	}
	if rps := os.Getenv("API_RATE_LIMIT"); rps != "" {
		v, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid API_RATE_LIMIT %q: %w", rps, err)
		}
		cfg.API.RateLimit = v
	}
	if burst := os.Getenv("API_RATE_BURST"); burst != "" {
		v, err := strconv.Atoi(burst)
		if err != nil {
			return cfg, fmt.Errorf("invalid API_RATE_BURST %q: %w", burst, err)
		}
		cfg.API.RateBurst = v
	}

	cfg.Logging.File = getEnv("LOG_FILE", cfg.Logging.File)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.MarketsFile = getEnv("MARKETS_FILE", cfg.MarketsFile)

	return cfg, nil
}

// Validate checks the settings every signing command needs
func (c Config) Validate() error {
	var missing []string
	if c.Account.PrivateKey == "" {
		missing = append(missing, "STARK_PRIVATE_KEY")
	}
	if c.Account.VaultID == "" {
		missing = append(missing, "STARK_VAULT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Orders.Expiry <= 0 {
		return fmt.Errorf("ORDER_EXPIRY_MS must be positive")
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
