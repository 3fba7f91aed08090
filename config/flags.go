package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Daemon
	DaemonRPCURL string
	DaemonTimeout string

	// Claimtrie
	ReorgLimit       string
	ExpirationWindow string

	// Prefetch
	PrefetchBudget string

	// Mempool
	MempoolMaxSize string

	// Metrics
	Metrics     bool
	MetricsAddr string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetMetrics bool
	SetLogJSON bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("klingnet-indexerd", flag.ContinueOnError)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet, testnet, or regtest)")
	var testnet bool
	fs.BoolVar(&testnet, "testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Daemon
	fs.StringVar(&f.DaemonRPCURL, "daemon-rpc-url", "", "Daemon JSON-RPC endpoint")
	fs.StringVar(&f.DaemonTimeout, "daemon-timeout", "", "Daemon RPC timeout (e.g. 10s)")

	// Claimtrie
	fs.StringVar(&f.ReorgLimit, "reorg-limit", "", "Deepest reorg unwound, in blocks")
	fs.StringVar(&f.ExpirationWindow, "expiration-window", "", "Blocks before an unrenewed claim expires (not applied by the block processor)")

	// Prefetch
	fs.StringVar(&f.PrefetchBudget, "prefetch-budget-bytes", "", "Prefetcher in-memory cache budget in bytes")

	// Mempool
	fs.StringVar(&f.MempoolMaxSize, "mempool-max-size", "", "Maximum tracked unconfirmed transactions")

	// Metrics
	fs.BoolVar(&f.Metrics, "metrics", true, "Enable Prometheus metrics endpoint")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Metrics listen address")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	// Custom usage
	fs.Usage = func() {
		printUsage()
	}

	// Parse
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Handle --testnet shorthand
	if testnet {
		f.Network = "testnet"
	}
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the parser.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintf(os.Stderr, "Error: flag %q was not parsed (positional argument stopped parsing)\n", arg)
			os.Exit(1)
		}
	}

	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) error {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Daemon
	if f.DaemonRPCURL != "" {
		cfg.Daemon.RPCURL = f.DaemonRPCURL
	}
	if f.DaemonTimeout != "" {
		d, err := time.ParseDuration(f.DaemonTimeout)
		if err != nil {
			return fmt.Errorf("--daemon-timeout: %w", err)
		}
		cfg.Daemon.Timeout = d
	}

	// Claimtrie
	if f.ReorgLimit != "" {
		n, err := strconv.ParseUint(f.ReorgLimit, 10, 32)
		if err != nil {
			return fmt.Errorf("--reorg-limit: %w", err)
		}
		cfg.Claimtrie.ReorgLimit = uint32(n)
	}
	if f.ExpirationWindow != "" {
		n, err := strconv.ParseUint(f.ExpirationWindow, 10, 32)
		if err != nil {
			return fmt.Errorf("--expiration-window: %w", err)
		}
		cfg.Claimtrie.ExpirationWindow = uint32(n)
	}

	// Prefetch
	if f.PrefetchBudget != "" {
		n, err := strconv.ParseInt(f.PrefetchBudget, 10, 64)
		if err != nil {
			return fmt.Errorf("--prefetch-budget-bytes: %w", err)
		}
		cfg.Prefetch.CacheBudgetBytes = n
	}

	// Mempool
	if f.MempoolMaxSize != "" {
		n, err := strconv.Atoi(f.MempoolMaxSize)
		if err != nil {
			return fmt.Errorf("--mempool-max-size: %w", err)
		}
		cfg.Mempool.MaxSize = n
	}

	// Metrics
	if f.SetMetrics {
		cfg.Metrics.Enabled = f.Metrics
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}

	return nil
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `klingnet-indexerd - claim index over a Klingnet-compatible daemon

Usage:
  klingnet-indexerd [options]
  klingnet-indexerd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network             Network type: mainnet (default), testnet, or regtest
  --testnet             Shorthand for --network=testnet
  --datadir             Data directory (default: ~/.klingnet-index)
  --config, -c          Config file path (default: <datadir>/klingnet-index.conf)

Daemon Options:
  --daemon-rpc-url      Daemon JSON-RPC endpoint
  --daemon-timeout      Daemon RPC timeout (e.g. 10s)

Claimtrie Options:
  --reorg-limit         Deepest reorg unwound, in blocks
  --expiration-window   Blocks before an unrenewed claim expires (not applied by the block processor)

Prefetch Options:
  --prefetch-budget-bytes  Prefetcher in-memory cache budget in bytes

Mempool Options:
  --mempool-max-size    Maximum tracked unconfirmed transactions

Metrics Options:
  --metrics             Enable Prometheus metrics endpoint (default: true)
  --metrics-addr        Metrics listen address

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: <datadir>/logs/klingnet-index.log)
  --log-json      Output logs as JSON

Examples:
  # Track mainnet against a local daemon
  klingnet-indexerd --daemon-rpc-url=http://127.0.0.1:50001

  # Track testnet with a custom data directory
  klingnet-indexerd --network=testnet --datadir=/path/to/data

Note:
  Claimtrie parameters must match the daemon being indexed. Changing
  reorg-limit, delay-factor, or expiration-window away from the daemon's
  own values will desync the claim index from consensus. Data directories
  are created automatically on first start.
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	// Handle help/version
	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("klingnet-indexerd version 0.1.0")
		os.Exit(0)
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	switch strings.ToLower(flags.Network) {
	case "testnet":
		network = Testnet
	case "regtest":
		network = Regtest
	}

	// Start with defaults
	cfg := Default(network)

	// Override datadir if specified
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	// Determine config file path
	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	// Load config file
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}

	// Apply file config
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	if err := ApplyFlags(cfg, flags); err != nil {
		return nil, nil, fmt.Errorf("applying flags: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. This is idempotent — safe to call on
// every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.DBDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	// Create default config if it doesn't exist.
	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
