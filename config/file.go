package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads indexer configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets an indexer config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// Daemon
	case "daemon.rpc_url":
		cfg.Daemon.RPCURL = value
	case "daemon.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Daemon.Timeout = d
	case "daemon.polling_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Daemon.PollingDelay = d

	// Claimtrie
	case "claimtrie.reorg_limit":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Claimtrie.ReorgLimit = uint32(n)
	case "claimtrie.delay_factor":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Claimtrie.DelayFactor = uint32(n)
	case "claimtrie.max_takeover_delay":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Claimtrie.MaxTakeoverDelay = uint32(n)
	case "claimtrie.expiration_window":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Claimtrie.ExpirationWindow = uint32(n)

	// Prefetch
	case "prefetch.cache_budget_bytes":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Prefetch.CacheBudgetBytes = n
	case "prefetch.polling_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Prefetch.PollingDelay = d

	// Mempool
	case "mempool.max_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Mempool.MaxSize = n
	case "mempool.max_tx_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Mempool.MaxTxSize = n
	case "mempool.refresh_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Mempool.RefreshInterval = d

	// Metrics
	case "metrics.enabled":
		cfg.Metrics.Enabled = parseBool(value)
	case "metrics.addr":
		cfg.Metrics.Addr = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default indexer configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	cfg := Default(network)
	content := `# Klingnet claim index configuration
#
# This file contains NODE settings for this indexer instance.
# Claimtrie parameters (reorg_limit, delay_factor, max_takeover_delay,
# expiration_window) must match the daemon this indexer is pointed at —
# changing them without also changing the daemon's consensus rules will
# desync the claim index from the chain it's indexing.

# Network: mainnet, testnet, or regtest
network = ` + string(network) + `

# Data directory (default: ~/.klingnet-index)
# datadir = ~/.klingnet-index

# ============================================================================
# Daemon RPC
# ============================================================================

daemon.rpc_url = ` + cfg.Daemon.RPCURL + `
daemon.timeout = ` + cfg.Daemon.Timeout.String() + `
daemon.polling_delay = ` + cfg.Daemon.PollingDelay.String() + `

# ============================================================================
# Claimtrie
# ============================================================================

claimtrie.reorg_limit = ` + strconv.Itoa(int(cfg.Claimtrie.ReorgLimit)) + `
claimtrie.delay_factor = ` + strconv.Itoa(int(cfg.Claimtrie.DelayFactor)) + `
claimtrie.max_takeover_delay = ` + strconv.Itoa(int(cfg.Claimtrie.MaxTakeoverDelay)) + `
claimtrie.expiration_window = ` + strconv.Itoa(int(cfg.Claimtrie.ExpirationWindow)) + `

# ============================================================================
# Block prefetching
# ============================================================================

prefetch.cache_budget_bytes = ` + strconv.FormatInt(cfg.Prefetch.CacheBudgetBytes, 10) + `
prefetch.polling_delay = ` + cfg.Prefetch.PollingDelay.String() + `

# ============================================================================
# Mempool
# ============================================================================

mempool.max_size = ` + strconv.Itoa(cfg.Mempool.MaxSize) + `
mempool.max_tx_size = ` + strconv.Itoa(cfg.Mempool.MaxTxSize) + `
mempool.refresh_interval = ` + cfg.Mempool.RefreshInterval.String() + `

# ============================================================================
# Metrics
# ============================================================================

metrics.enabled = true
metrics.addr = ` + cfg.Metrics.Addr + `

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
