package config

import (
	"time"

	"github.com/Klingon-tech/klingnet-index/internal/claimtrie"
	"github.com/Klingon-tech/klingnet-index/internal/daemon"
	"github.com/Klingon-tech/klingnet-index/internal/mempool"
	"github.com/Klingon-tech/klingnet-index/internal/prefetch"
)

// DefaultMainnet returns the default indexer configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Daemon: DaemonConfig{
			RPCURL:       "http://127.0.0.1:50001",
			Timeout:      daemon.DefaultTimeout,
			PollingDelay: 30 * time.Second,
		},
		Claimtrie: ClaimtrieConfig{
			ReorgLimit:       200,
			DelayFactor:      claimtrie.DefaultDelayFactor,
			MaxTakeoverDelay: uint32(claimtrie.DefaultMaxTakeoverDelay),
			ExpirationWindow: 2_102_400,
		},
		Prefetch: PrefetchConfig{
			CacheBudgetBytes: prefetch.DefaultMinCacheSize,
			PollingDelay:     prefetch.DefaultPollingDelay,
		},
		Mempool: MempoolConfig{
			MaxSize:         mempool.DefaultMaxSize,
			MaxTxSize:       mempool.DefaultMaxTxSize,
			RefreshInterval: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9242",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default indexer configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Daemon.RPCURL = "http://127.0.0.1:51001"
	cfg.Metrics.Addr = "127.0.0.1:9243"
	return cfg
}

// DefaultRegtest returns the default indexer configuration for a local
// regtest daemon. It sets short delay and expiration values in
// Claimtrie; the block processor does not apply them.
func DefaultRegtest() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Regtest
	cfg.Daemon.RPCURL = "http://127.0.0.1:52001"
	cfg.Claimtrie.DelayFactor = 1
	cfg.Claimtrie.MaxTakeoverDelay = 10
	cfg.Claimtrie.ExpirationWindow = 1_000
	cfg.Metrics.Addr = "127.0.0.1:9244"
	return cfg
}

// Default returns the default indexer configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	case Regtest:
		return DefaultRegtest()
	default:
		return DefaultMainnet()
	}
}
