package infra

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all engine settings. Secrets are never read from the YAML
// file: the AEAD key arrives exclusively through the environment and is
// excluded from marshalling so it can never round-trip into a file or log.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Engine struct {
		PollIntervalMS  int    `yaml:"poll_interval_ms"`
		StalenessMS     int    `yaml:"staleness_ms"`
		QuoteTimeoutMS  int    `yaml:"quote_timeout_ms"`
		SubmitTimeoutMS int    `yaml:"submit_timeout_ms"`
		FeeAccount      string `yaml:"fee_account"`
		FeeBps          int    `yaml:"fee_bps"`
	} `yaml:"engine"`

	API struct {
		Jupiter struct {
			PriceURL string `yaml:"price_url"`
			SwapURL  string `yaml:"swap_url"`
		} `yaml:"jupiter"`
		Jito struct {
			URL string `yaml:"url"`
		} `yaml:"jito"`
		Solana struct {
			RPCURL string `yaml:"rpc_url"`
		} `yaml:"solana"`
		Feed struct {
			Mode  string `yaml:"mode"` // "poll" or "ws"
			WSURL string `yaml:"ws_url"`
		} `yaml:"feed"`
	} `yaml:"api"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	// AESKey is the 256-bit pre-shared key for the secure key codec.
	// Loaded from SWAP_AES_KEY (base64) only.
	AESKey []byte `yaml:"-"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := overrideWithEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Engine.PollIntervalMS <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Engine.StalenessMS <= 0 {
		return fmt.Errorf("staleness threshold must be positive")
	}
	if c.Engine.QuoteTimeoutMS <= 0 || c.Engine.SubmitTimeoutMS <= 0 {
		return fmt.Errorf("quote and submit timeouts must be positive")
	}
	if c.Engine.FeeBps < 0 || c.Engine.FeeBps > 10000 {
		return fmt.Errorf("fee_bps out of range: %d", c.Engine.FeeBps)
	}
	if c.Engine.FeeBps > 0 && c.Engine.FeeAccount == "" {
		return fmt.Errorf("fee_bps set but fee_account missing")
	}

	if !strings.HasPrefix(c.API.Jupiter.PriceURL, "http://") && !strings.HasPrefix(c.API.Jupiter.PriceURL, "https://") {
		return fmt.Errorf("invalid Jupiter price URL: %s", c.API.Jupiter.PriceURL)
	}
	if !strings.HasPrefix(c.API.Jupiter.SwapURL, "http://") && !strings.HasPrefix(c.API.Jupiter.SwapURL, "https://") {
		return fmt.Errorf("invalid Jupiter swap URL: %s", c.API.Jupiter.SwapURL)
	}
	if !strings.HasPrefix(c.API.Solana.RPCURL, "http://") && !strings.HasPrefix(c.API.Solana.RPCURL, "https://") {
		return fmt.Errorf("invalid Solana RPC URL: %s", c.API.Solana.RPCURL)
	}
	if c.API.Jito.URL != "" && !strings.HasPrefix(c.API.Jito.URL, "http://") && !strings.HasPrefix(c.API.Jito.URL, "https://") {
		return fmt.Errorf("invalid Jito URL: %s", c.API.Jito.URL)
	}

	switch c.API.Feed.Mode {
	case "", "poll":
		// default
	case "ws":
		if !strings.HasPrefix(c.API.Feed.WSURL, "ws://") && !strings.HasPrefix(c.API.Feed.WSURL, "wss://") {
			return fmt.Errorf("invalid feed WS URL: %s", c.API.Feed.WSURL)
		}
	default:
		return fmt.Errorf("unknown feed mode: %s", c.API.Feed.Mode)
	}

	if len(c.AESKey) != 32 {
		return fmt.Errorf("SWAP_AES_KEY must decode to 32 bytes, got %d", len(c.AESKey))
	}

	return nil
}

// overrideWithEnv applies environment overrides. Env always wins over the
// file for endpoints, and is the only source for the AEAD key (Fail Fast
// when absent).
func overrideWithEnv(cfg *Config) error {
	if url := os.Getenv("SWAP_JUP_PRICE_URL"); url != "" {
		cfg.API.Jupiter.PriceURL = url
	}
	if url := os.Getenv("SWAP_JUP_URL"); url != "" {
		cfg.API.Jupiter.SwapURL = url
	}
	if url := os.Getenv("SWAP_JITO_URL"); url != "" {
		cfg.API.Jito.URL = url
	}
	if url := os.Getenv("SWAP_RPC_URL"); url != "" {
		cfg.API.Solana.RPCURL = url
	}
	if acc := os.Getenv("SWAP_FEE_ACCOUNT"); acc != "" {
		cfg.Engine.FeeAccount = acc
	}

	raw := strings.TrimSpace(os.Getenv("SWAP_AES_KEY"))
	if raw == "" {
		return fmt.Errorf("SWAP_AES_KEY is not set (base64 of a 32-byte key)")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("SWAP_AES_KEY is not valid base64: %w", err)
	}
	cfg.AESKey = key
	return nil
}
