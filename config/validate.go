package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime indexer config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Testnet, Regtest:
	default:
		return fmt.Errorf("network must be %q, %q, or %q", Mainnet, Testnet, Regtest)
	}

	if cfg.Daemon.RPCURL == "" {
		return fmt.Errorf("daemon.rpc_url is required")
	}
	if _, err := url.Parse(cfg.Daemon.RPCURL); err != nil {
		return fmt.Errorf("daemon.rpc_url: %w", err)
	}
	if cfg.Daemon.Timeout <= 0 {
		return fmt.Errorf("daemon.timeout must be positive")
	}
	if cfg.Daemon.PollingDelay <= 0 {
		return fmt.Errorf("daemon.polling_delay must be positive")
	}

	if cfg.Claimtrie.DelayFactor == 0 {
		return fmt.Errorf("claimtrie.delay_factor must be positive")
	}
	if cfg.Claimtrie.ExpirationWindow == 0 {
		return fmt.Errorf("claimtrie.expiration_window must be positive")
	}

	if cfg.Prefetch.CacheBudgetBytes <= 0 {
		return fmt.Errorf("prefetch.cache_budget_bytes must be positive")
	}
	if cfg.Prefetch.PollingDelay <= 0 {
		return fmt.Errorf("prefetch.polling_delay must be positive")
	}

	if cfg.Mempool.MaxSize <= 0 {
		return fmt.Errorf("mempool.max_size must be positive")
	}
	if cfg.Mempool.MaxTxSize <= 0 {
		return fmt.Errorf("mempool.max_tx_size must be positive")
	}
	if cfg.Mempool.RefreshInterval <= 0 {
		return fmt.Errorf("mempool.refresh_interval must be positive")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics.enabled is true")
	}

	return nil
}
