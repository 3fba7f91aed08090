// Klingnet claim index daemon.
//
// Usage:
//
//	klingnet-indexerd                 Run indexer against the configured daemon
//	klingnet-indexerd --help          Show help
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Klingon-tech/klingnet-index/config"
	"github.com/Klingon-tech/klingnet-index/internal/block"
	"github.com/Klingon-tech/klingnet-index/internal/daemon"
	klog "github.com/Klingon-tech/klingnet-index/internal/log"
	"github.com/Klingon-tech/klingnet-index/internal/mempool"
	"github.com/Klingon-tech/klingnet-index/internal/metrics"
	"github.com/Klingon-tech/klingnet-index/internal/prefetch"
	"github.com/Klingon-tech/klingnet-index/internal/search"
	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/rs/zerolog"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ──────────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logs dir: %v\n", err)
			os.Exit(1)
		}
		logFile = logsDir + "/klingnet-index.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("indexer")

	// ── 3. Genesis identity ──────────────────────────────────────────────
	genesis := config.GenesisFor(cfg.Network)
	logger.Info().
		Str("chain", genesis.ChainName).
		Str("network", string(cfg.Network)).
		Str("daemon", cfg.Daemon.RPCURL).
		Msg("Starting Klingnet claim indexer")

	// ── 4. Open storage ───────────────────────────────────────────────────
	if err := os.MkdirAll(cfg.DBDir(), 0755); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBDir()).Msg("Failed to create database dir")
	}
	db, err := storage.NewBadger(cfg.DBDir())
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBDir()).Msg("Failed to open database")
	}
	defer db.Close()
	logger.Info().Str("path", cfg.DBDir()).Msg("Database opened")

	// ── 5. Daemon RPC client ──────────────────────────────────────────────
	daemonClient := daemon.NewWithTimeout(cfg.Daemon.RPCURL, cfg.Daemon.Timeout)

	// ── 6. Block processor (auto-recovers tip from DB) ────────────────────
	processor, err := block.NewProcessor(db, types.Height(cfg.Claimtrie.ReorgLimit))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create block processor")
	}

	tip, err := processor.Tip()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to read chain tip")
	}
	if tip.IsGenesis() {
		logger.Info().Msg("Starting from genesis")
	} else {
		logger.Info().
			Uint32("height", uint32(tip.Height)).
			Str("tip", tip.TipHash.String()[:16]+"...").
			Msg("Resumed from database")
	}

	// ── 6a. Confirm the daemon tracks the chain this indexer expects ──────
	startupCtx, startupCancel := context.WithTimeout(context.Background(), cfg.Daemon.Timeout)
	daemonGenesisHash, err := daemonClient.BlockHashAt(startupCtx, 0)
	startupCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to fetch daemon genesis block")
	}
	if err := genesis.CheckDaemonGenesis(daemonGenesisHash); err != nil {
		logger.Fatal().Err(err).Msg("Daemon genesis mismatch")
	}

	// ── 7. Metrics ────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	processor.SetMetricsSink(metrics.NewBlockSink(m))

	searchSink := search.NewSink(search.NoopIndex{})
	processor.SetSearchSink(searchSink)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics server started")
	}

	// ── 8. Context for background loops ───────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── 9. Prefetcher ──────────────────────────────────────────────────────
	startHeight := tip.Height + 1
	if tip.IsGenesis() {
		startHeight = 0
	}
	prefetcher := prefetch.New(daemonClient, startHeight, nil)
	prefetcher.SetMinCacheSize(int(cfg.Prefetch.CacheBudgetBytes))
	prefetcher.SetPollingDelay(cfg.Prefetch.PollingDelay)
	go func() {
		if err := prefetcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("Prefetcher stopped")
		}
	}()

	// ── 10. Mempool ────────────────────────────────────────────────────────
	pool := mempool.New(processor, cfg.Mempool.MaxSize)
	pool.SetPolicy(&mempool.Policy{MaxTxSize: cfg.Mempool.MaxTxSize})
	go runMempoolRefresh(ctx, pool, daemonClient, m, cfg.Mempool.RefreshInterval, logger)

	// ── 11. Block advance loop ───────────────────────────────────────────
	go runAdvanceLoop(ctx, processor, daemonClient, prefetcher, pool, searchSink, logger)

	logger.Info().
		Uint32("height", uint32(tip.Height)).
		Msg("Indexer started successfully")

	// ── 12. Wait for shutdown ─────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	cancel()
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	logger.Info().Msg("Goodbye!")
}

// runAdvanceLoop pulls prefetched blocks and feeds them to the processor's
// reorg-aware advance path. On ErrInteriorMismatch the daemon reorged out
// from under the prefetcher, so it's reset to the processor's new tip and
// the batch that failed is simply re-fetched on the next pass.
func runAdvanceLoop(ctx context.Context, processor *block.Processor, daemonClient *daemon.Client,
	prefetcher *prefetch.Prefetcher, pool *mempool.Pool, searchSink *search.Sink, logger zerolog.Logger) {

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		blocks := prefetcher.TakePrefetched()
		if len(blocks) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		err := processor.CheckAndAdvanceBlocks(ctx, daemonClient, blocks)
		if err == nil {
			for _, blk := range blocks {
				txHashes := make([]types.Hash, 0, len(blk.Transactions))
				for _, tx := range blk.Transactions {
					txHashes = append(txHashes, tx.Hash())
				}
				pool.RemoveConfirmed(txHashes)
			}
			if fErr := searchSink.Flush(ctx); fErr != nil {
				logger.Warn().Err(fErr).Msg("Search index flush failed")
			}
			tip, tErr := processor.Tip()
			if tErr == nil {
				logger.Info().
					Uint32("height", uint32(tip.Height)).
					Int("blocks", len(blocks)).
					Msg("Blocks advanced")
			}
			continue
		}

		if errors.Is(err, block.ErrInteriorMismatch) {
			tip, tErr := processor.Tip()
			if tErr != nil {
				logger.Warn().Err(tErr).Msg("Failed to read tip after reorg")
				continue
			}
			logger.Info().Uint32("height", uint32(tip.Height)).Msg("Resetting prefetcher after reorg")
			if fErr := searchSink.Flush(ctx); fErr != nil {
				logger.Warn().Err(fErr).Msg("Search index flush failed")
			}
			prefetcher.ResetHeight(tip.Height + 1)
			continue
		}

		logger.Warn().Err(err).Msg("Block advance failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// runMempoolRefresh periodically reconciles the local mempool mirror
// against the daemon's, counting each cycle for observability.
func runMempoolRefresh(ctx context.Context, pool *mempool.Pool, daemonClient *daemon.Client,
	m *metrics.Metrics, interval time.Duration, logger zerolog.Logger) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pool.Refresh(ctx, daemonClient); err != nil {
				logger.Warn().Err(err).Msg("Mempool refresh failed")
				continue
			}
			m.ProcessedMempool.Inc()
		}
	}
}
