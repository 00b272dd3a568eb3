package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmsd/dmsd/internal/config"
	"github.com/dmsd/dmsd/internal/infra"
	"github.com/dmsd/dmsd/internal/logging"
	"github.com/dmsd/dmsd/internal/server"
	"github.com/dmsd/dmsd/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("dmsd api stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var deps server.Infra

	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := infra.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		deps.DB = db
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory accounts and journal")
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cache.Close()
		deps.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, sessions and nonces stay in memory")
	}

	backend, eth, err := infra.NewContractClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect contract: %w", err)
	}
	deps.Contract = backend
	if eth != nil {
		defer eth.Close()
		deps.RPC = eth
	}

	keys, err := wallet.NewKeyring(big.NewInt(cfg.ChainID), cfg.SignerKeys)
	if err != nil {
		return fmt.Errorf("load signer keys: %w", err)
	}
	if len(keys.Addresses()) == 0 {
		logger.Warn("no SIGNER_KEYS configured, contract writes will fail")
	}
	deps.Signers = keys

	srv, err := server.New(cfg, deps, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	listenErr := make(chan error, 1)
	go func() { listenErr <- srv.Listen() }()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
