// Package main runs the tip ledger HTTP service:
// - POST /tip records tips and pays the loyalty reward on every third tip of a pair
// - GET /supporter/{wallet} serves the supporter dashboard
// - GET /health and /metrics for operations
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"tip-ledger/internal/api"
	"tip-ledger/internal/config"
	"tip-ledger/internal/dashboard"
	"tip-ledger/internal/observability"
	"tip-ledger/internal/payout"
	"tip-ledger/internal/reward"
	"tip-ledger/internal/solana"
	"tip-ledger/internal/storage"
	chstore "tip-ledger/internal/storage/clickhouse"
	"tip-ledger/internal/storage/memory"
	"tip-ledger/internal/storage/migrations"
	pgstore "tip-ledger/internal/storage/postgres"
	"tip-ledger/internal/storage/sqlite"
)

// shutdownTimeout bounds graceful shutdown, including in-flight payouts.
const shutdownTimeout = 90 * time.Second

func main() {
	cfg, err := config.Load(".env", os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	out := logOutput(cfg.LogFile)
	logger := newLogger(out, "server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanupStore, err := createStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create ledger store: %v", err)
	}
	defer cleanupStore()
	logger.Printf("Ledger storage: %s", cfg.Storage)

	var (
		sink        storage.LedgerEventSink
		leaderboard api.Leaderboard
	)
	if cfg.ClickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to prepare ClickHouse mirror: %v", err)
		}
		defer chConn.Close()

		events := chstore.NewLedgerEventStore(chConn)
		sink, leaderboard = events, events
		logger.Println("ClickHouse analytics mirror enabled")
	}

	payer, err := loadKeypair(cfg)
	if err != nil {
		logger.Fatalf("Failed to load platform wallet: %v", err)
	}
	logger.Printf("Platform wallet: %s", payer.PublicKey())

	rpc := solana.NewHTTPClient(cfg.RPCURL)
	confirmer, closeWS := createConfirmer(ctx, cfg, rpc, out)
	defer closeWS()

	submitter, err := payout.NewSolanaSubmitter(payout.Options{
		RPC:            rpc,
		Payer:          payer,
		Confirmer:      confirmer,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         newLogger(out, "payout"),
	})
	if err != nil {
		logger.Fatalf("Failed to create payout submitter: %v", err)
	}

	logPlatformBalance(ctx, rpc, submitter.PlatformWallet(), logger)

	policy, err := reward.NewPolicy(cfg.LoyaltyPercentage)
	if err != nil {
		logger.Fatalf("Invalid reward policy: %v", err)
	}
	engine, err := reward.NewEngine(reward.Options{
		Store:     store,
		Submitter: submitter,
		Sink:      sink,
		Policy:    &policy,
		Logger:    newLogger(out, "reward"),
	})
	if err != nil {
		logger.Fatalf("Failed to create reward engine: %v", err)
	}

	handler := api.NewRouter(api.Options{
		Tips:           engine,
		Dashboard:      dashboard.NewAggregator(store),
		Leaderboard:    leaderboard,
		PlatformWallet: submitter.PlatformWallet(),
		CORS:           api.CORSConfig{AllowedOrigins: cfg.CORSOrigins},
		TipRateLimit:   api.RateLimit{RequestsPerMinute: cfg.TipRatePerMinute, Burst: cfg.TipRateBurst},
		Logger:         newLogger(out, "api"),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Tip ledger listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-errCh:
		logger.Printf("HTTP server error: %v", err)
	}

	// Second signal forces exit.
	go func() {
		sig := <-sigCh
		logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
		os.Exit(1)
	}()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	// Handlers with a payout in flight finish before Shutdown returns.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	cancel()

	logger.Println("Shutdown complete")
}

func newLogger(out io.Writer, component string) *log.Logger {
	return log.New(out, "["+component+"] ", log.LstdFlags|log.Lshortfile)
}

// logOutput writes to stdout and, when path is set, to a rotated log file.
func logOutput(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	})
}

// createStore opens the configured ledger backend and applies its migrations.
func createStore(ctx context.Context, cfg *config.Config) (storage.LedgerStore, func(), error) {
	switch cfg.Storage {
	case config.StorageMemory:
		store := memory.NewLedgerStore()
		return store, func() { store.Close() }, nil

	case config.StoragePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		store := pgstore.NewLedgerStore(pool)
		return store, func() { store.Close() }, nil

	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		store := sqlite.NewLedgerStore(db)
		return store, func() { store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}

// loadKeypair prefers the inline secret over the keypair file.
func loadKeypair(cfg *config.Config) (*solana.Keypair, error) {
	if cfg.KeypairSecret != "" {
		kp, err := solana.ParseKeypairJSON([]byte(cfg.KeypairSecret))
		if err != nil {
			return nil, fmt.Errorf("inline secret: %w", err)
		}
		return kp, nil
	}
	return solana.LoadKeypairFile(cfg.KeypairPath)
}

// createConfirmer uses websocket notifications when a WS endpoint is configured
// and reachable, and polling otherwise.
func createConfirmer(ctx context.Context, cfg *config.Config, rpc solana.RPCClient, out io.Writer) (payout.Confirmer, func()) {
	poll := payout.NewPollingConfirmer(rpc, cfg.PollInterval, solana.CommitmentConfirmed)
	if cfg.WSURL == "" {
		return poll, func() {}
	}

	wsCfg := solana.DefaultWSConfig()
	wsCfg.Logger = newLogger(out, "solana-ws")
	ws, err := solana.NewWSClient(ctx, cfg.WSURL, &wsCfg)
	if err != nil {
		wsCfg.Logger.Printf("WebSocket unavailable, confirming by polling: %v", err)
		return poll, func() {}
	}
	return payout.NewWSConfirmer(ws, poll), func() { ws.Close() }
}

func logPlatformBalance(ctx context.Context, rpc solana.RPCClient, wallet string, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	lamports, err := rpc.GetBalance(ctx, wallet)
	if err != nil {
		logger.Printf("Could not read platform wallet balance: %v", err)
		return
	}
	logger.Printf("Platform wallet balance: %.9f SOL", float64(lamports)/solana.LamportsPerSOL)
	if lamports == 0 {
		logger.Println("WARNING: platform wallet is empty; reward payouts will fail")
	}
}
