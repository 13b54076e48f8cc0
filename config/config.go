// Package config loads the copy-trade core configuration from YAML with
// environment overrides for secrets and endpoints.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig controls the chain connection manager.
type ProviderConfig struct {
	WSEndpoint           string   `yaml:"ws_endpoint"`
	WSFallbacks          []string `yaml:"ws_fallbacks"`
	HTTPEndpoint         string   `yaml:"http_endpoint"`
	HTTPFallbacks        []string `yaml:"http_fallbacks"`
	ChainID              int64    `yaml:"chain_id"`
	ReconnectDelaySec    int      `yaml:"reconnect_delay_sec"`
	RateLimitCooldownSec int      `yaml:"rate_limit_cooldown_sec"`
	BlockPollIntervalSec int      `yaml:"block_poll_interval_sec"`
}

// ClassifierConfig defines the contract address sets the classifier
// matches against.
type ClassifierConfig struct {
	RouterAddresses  []string `yaml:"router_addresses"`
	FactoryAddresses []string `yaml:"factory_addresses"`
	WETHAddress      string   `yaml:"weth_address"`
	ProcessedSetSize int      `yaml:"processed_set_size"`
}

// MirrorConfig controls mirrored-trade sizing and dispatch.
type MirrorConfig struct {
	MinDelayMS      int     `yaml:"min_delay_ms"`
	MaxDelayMS      int     `yaml:"max_delay_ms"`
	GasReservePct   float64 `yaml:"gas_reserve_pct"`
	DefaultSlippage float64 `yaml:"default_slippage_pct"`
	SellPolicy      string  `yaml:"sell_policy"`
}

// ExecutorConfig controls order execution and MEV-protection splitting.
type ExecutorConfig struct {
	RouterAddress     string  `yaml:"router_address"`
	MEVThresholdETH   float64 `yaml:"mev_threshold_eth"`
	OrderSplits       int     `yaml:"order_splits"`
	SplitMinDelayMS   int     `yaml:"split_min_delay_ms"`
	SplitMaxDelayMS   int     `yaml:"split_max_delay_ms"`
	ReceiptTimeoutSec int     `yaml:"receipt_timeout_sec"`
	DeadlineMinutes   int     `yaml:"deadline_minutes"`
	GasLimit          uint64  `yaml:"gas_limit"`
	FeeRecipient      string  `yaml:"fee_recipient"`
	FeePercentage     float64 `yaml:"fee_percentage"`
}

// ServerConfig controls the ops HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Config aggregates every knob of the copy-trade core.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Mirror     MirrorConfig     `yaml:"mirror"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Server     ServerConfig     `yaml:"server"`
}

// Base mainnet defaults, matching the contracts the bot originally
// targeted.
const (
	DefaultChainID        = 8453
	DefaultWETH           = "0x4200000000000000000000000000000000000006"
	DefaultBaseswapRouter = "0xae4ec9901c3076d0ddbe76a520f9e90a6227acb7"
	DefaultVeloraRouter   = "0x6e2b76966cbd9cf4cc2fa0d76d24d5241e0abc2f"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			WSEndpoint:           "wss://base-rpc.publicnode.com",
			WSFallbacks:          []string{"wss://base.drpc.org"},
			HTTPEndpoint:         "https://base-rpc.publicnode.com",
			HTTPFallbacks:        []string{"https://base.drpc.org"},
			ChainID:              DefaultChainID,
			ReconnectDelaySec:    3,
			RateLimitCooldownSec: 60,
			BlockPollIntervalSec: 5,
		},
		Classifier: ClassifierConfig{
			RouterAddresses:  []string{DefaultBaseswapRouter, DefaultVeloraRouter},
			FactoryAddresses: []string{},
			WETHAddress:      DefaultWETH,
			ProcessedSetSize: 1000,
		},
		Mirror: MirrorConfig{
			MinDelayMS:      500,
			MaxDelayMS:      3000,
			GasReservePct:   5.0,
			DefaultSlippage: 5.0,
			SellPolicy:      "sell_all",
		},
		Executor: ExecutorConfig{
			RouterAddress:     DefaultBaseswapRouter,
			MEVThresholdETH:   1.0,
			OrderSplits:       3,
			SplitMinDelayMS:   1000,
			SplitMaxDelayMS:   5000,
			ReceiptTimeoutSec: 120,
			DeadlineMinutes:   20,
			GasLimit:          250000,
			FeePercentage:     0,
		},
		Server: ServerConfig{Port: 8090},
	}
}

// Load reads configuration from disk, falling back to defaults when the
// path is empty or the file does not exist. Environment variables
// override endpoints so secrets stay out of the YAML.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ZORACLE_WS_RPC"); v != "" {
		cfg.Provider.WSEndpoint = v
	}
	if v := os.Getenv("ZORACLE_HTTP_RPC"); v != "" {
		cfg.Provider.HTTPEndpoint = v
	}
	if v := os.Getenv("ZORACLE_WS_FALLBACKS"); v != "" {
		cfg.Provider.WSFallbacks = splitList(v)
	}
	if v := os.Getenv("ZORACLE_HTTP_FALLBACKS"); v != "" {
		cfg.Provider.HTTPFallbacks = splitList(v)
	}
	if v := os.Getenv("ZORACLE_FEE_RECIPIENT"); v != "" {
		cfg.Executor.FeeRecipient = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks invariants that would otherwise surface as runtime
// surprises deep inside the engine.
func (c *Config) Validate() error {
	if c.Provider.WSEndpoint == "" && c.Provider.HTTPEndpoint == "" {
		return errors.New("config: at least one RPC endpoint is required")
	}
	if c.Executor.OrderSplits < 1 {
		return fmt.Errorf("config: order_splits must be >= 1, got %d", c.Executor.OrderSplits)
	}
	if c.Classifier.ProcessedSetSize < 1 {
		return fmt.Errorf("config: processed_set_size must be >= 1, got %d", c.Classifier.ProcessedSetSize)
	}
	if c.Mirror.MinDelayMS > c.Mirror.MaxDelayMS {
		return fmt.Errorf("config: mirror min_delay_ms %d exceeds max_delay_ms %d", c.Mirror.MinDelayMS, c.Mirror.MaxDelayMS)
	}
	if c.Executor.SplitMinDelayMS > c.Executor.SplitMaxDelayMS {
		return fmt.Errorf("config: executor split_min_delay_ms %d exceeds split_max_delay_ms %d", c.Executor.SplitMinDelayMS, c.Executor.SplitMaxDelayMS)
	}
	if c.Mirror.GasReservePct < 0 || c.Mirror.GasReservePct >= 100 {
		return fmt.Errorf("config: gas_reserve_pct must be in [0,100), got %.2f", c.Mirror.GasReservePct)
	}
	switch c.Mirror.SellPolicy {
	case "sell_all", "proportional":
	default:
		return fmt.Errorf("config: unknown sell_policy %q", c.Mirror.SellPolicy)
	}
	return nil
}

// ReceiptTimeout returns the bounded on-chain wait as a duration.
func (c *ExecutorConfig) ReceiptTimeout() time.Duration {
	return time.Duration(c.ReceiptTimeoutSec) * time.Second
}
