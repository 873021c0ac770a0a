package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boodongsan/boodongsan/internal/cache"
	"github.com/boodongsan/boodongsan/internal/config"
	"github.com/boodongsan/boodongsan/internal/log"
	"github.com/boodongsan/boodongsan/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the persistence core: configuration, logger, storage backend,
// and cache. The HTTP API, UI, and collector layers attach to these two
// façades and nothing else.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := log.New(log.Config{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := storage.New(cfg, logger.With("component", "storage"))
	if err != nil {
		return err
	}
	if err := backend.Initialize(ctx); err != nil {
		return err
	}
	defer func() {
		if err := backend.Finalize(context.Background()); err != nil {
			logger.Warn("storage finalize failed", "error", err)
		}
	}()

	empty, err := backend.IsEmpty(ctx)
	if err != nil {
		return err
	}
	logger.Info("storage ready", "backend", cfg.StorageBackend, "empty", empty)

	manager := cache.NewManager(cfg.RedisURL, cfg.RedisPassword, logger.With("component", "cache"))
	store := cache.New(manager, time.Duration(cfg.CacheTTL)*time.Second, logger.With("component", "cache"))
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("cache close failed", "error", err)
		}
	}()

	health := store.Health(ctx)
	logger.Info("cache ready", "alive", health.Alive, "degraded", health.Degraded)

	return nil
}
