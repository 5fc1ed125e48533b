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

	"github.com/rs/zerolog"

	"github.com/sheikh-saqib/finance-ledger/internal/api"
	"github.com/sheikh-saqib/finance-ledger/internal/cache"
	"github.com/sheikh-saqib/finance-ledger/internal/config"
	"github.com/sheikh-saqib/finance-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/finance-ledger/internal/ledger"
	"github.com/sheikh-saqib/finance-ledger/internal/logger"
	"github.com/sheikh-saqib/finance-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/finance-ledger/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	ledgerCache, closeCache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	opts := []ledger.Option{ledger.WithLogger(log)}
	if cfg.EventsEnabled() {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close event publisher")
			}
		}()
		opts = append(opts, ledger.WithPublisher(publisher))
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("Publishing ledger events")
	} else {
		log.Warn().Msg("No KAFKA_BROKERS configured - ledger events are disabled")
	}

	ledgerService := ledger.NewLedger(store, ledgerCache, opts...)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(ledgerService, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting ledger server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("listening on %s: %w", cfg.HTTPAddr, err)
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	log.Info().Msg("Server exited")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (interfaces.LedgerStore, func(), error) {
	if cfg.StoreDriver != config.DriverPostgres {
		log.Info().Msg("Using in-memory ledger store")
		return memory.NewMemoryLedgerStore(), func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := postgres.NewPostgresLedgerStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info().Msg("Using postgres ledger store")
	return store, func() { db.Close() }, nil
}

func openCache(ctx context.Context, cfg config.Config, log zerolog.Logger) (interfaces.Cache, func(), error) {
	if cfg.CacheDriver != config.DriverRedis {
		log.Info().Msg("Using in-memory view cache")
		return cache.NewMemory(), func() {}, nil
	}

	rc, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   "ledger:",
		TTL:      cfg.CacheTTL,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("Using redis view cache")
	return rc, func() {
		if err := rc.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis cache")
		}
	}, nil
}
