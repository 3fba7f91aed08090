// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Network parameters: genesis identity and consensus-adjacent constants
//     the indexer must agree with the daemon on (reorg depth, activation
//     delay curve, expiration window). These rarely change post-launch.
//   - Node settings: runtime configuration for this one indexer instance
//     (where its daemon lives, how much memory to spend prefetching, where
//     its database lives). These can vary freely between indexer instances
//     without any risk of diverging from another node's view of the chain.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies which chain this indexer is tracking.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Regtest NetworkType = "regtest"
)

// =============================================================================
// Node Configuration (runtime, per-instance settings)
// =============================================================================

// Config holds indexer-instance runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Daemon RPC connection
	Daemon DaemonConfig

	// Chain claimtrie/reorg parameters
	Claimtrie ClaimtrieConfig

	// Block prefetching
	Prefetch PrefetchConfig

	// Mempool touch-set tracking
	Mempool MempoolConfig

	// Prometheus metrics
	Metrics MetricsConfig

	// Logging
	Log LogConfig

	// Maintenance (not persisted in config file)
	RebuildIndexes bool
}

// DaemonConfig holds the JSON-RPC connection settings for the full node
// this indexer pulls blocks and mempool state from.
type DaemonConfig struct {
	RPCURL       string        `conf:"daemon.rpc_url"`
	Timeout      time.Duration `conf:"daemon.timeout"`
	PollingDelay time.Duration `conf:"daemon.polling_delay"` // Delay between daemon-height polls when caught up.
}

// ClaimtrieConfig holds the activation-delay and reorg parameters. Only
// ReorgLimit reaches the block processor, as its maximum reorg depth;
// DelayFactor, MaxTakeoverDelay and ExpirationWindow are validated and
// written to the config file, but the processor uses
// claimtrie.DefaultDelayCurve() and block.ExpirationWindow instead.
type ClaimtrieConfig struct {
	ReorgLimit       uint32 `conf:"claimtrie.reorg_limit"`        // Deepest reorg unwound, in blocks.
	DelayFactor      uint32 `conf:"claimtrie.delay_factor"`       // Challenger delay = claim_age / DelayFactor.
	MaxTakeoverDelay uint32 `conf:"claimtrie.max_takeover_delay"` // Delay curve ceiling, in blocks.
	ExpirationWindow uint32 `conf:"claimtrie.expiration_window"`  // Blocks a claim stays registered before expiring.
}

// PrefetchConfig holds the prefetcher's batch-sizing budget.
type PrefetchConfig struct {
	CacheBudgetBytes int64         `conf:"prefetch.cache_budget_bytes"`
	PollingDelay     time.Duration `conf:"prefetch.polling_delay"`
}

// MempoolConfig holds the unconfirmed-transaction touch-set tracker's
// capacity and refresh cadence.
type MempoolConfig struct {
	MaxSize         int           `conf:"mempool.max_size"`
	MaxTxSize       int           `conf:"mempool.max_tx_size"`
	RefreshInterval time.Duration `conf:"mempool.refresh_interval"`
}

// MetricsConfig holds the Prometheus exporter's listen settings.
type MetricsConfig struct {
	Enabled bool   `conf:"metrics.enabled"`
	Addr    string `conf:"metrics.addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-index
//	macOS:   ~/Library/Application Support/KlingnetIndex
//	Windows: %APPDATA%\KlingnetIndex
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-index"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetIndex")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingnetIndex")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetIndex")
	default:
		return filepath.Join(home, ".klingnet-index")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DBDir returns the Badger database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.ChainDataDir(), "db")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "klingnet-index.conf")
}
