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

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/minhacidade/backend/internal/config"
	"github.com/minhacidade/backend/internal/db"
	"github.com/minhacidade/backend/internal/events"
	"github.com/minhacidade/backend/internal/housekeeping"
	internalhttp "github.com/minhacidade/backend/internal/http"
	"github.com/minhacidade/backend/internal/mailer"
	"github.com/minhacidade/backend/internal/realtime"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBDSN, cfg.DBSSLMode)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	publisher, err := events.New(cfg.Events, log.Logger)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	defer publisher.Close()

	mail, err := mailer.New(cfg.SMTP, log.Logger)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	hub := realtime.NewHub()
	defer hub.Close()

	cleaner := housekeeping.NewService(repo.New(pool), cfg.Housekeeping, log.Logger)
	cleaner.Start(ctx)
	defer cleaner.Stop()

	handler := internalhttp.NewRouter(cfg, internalhttp.NewServices(cfg, internalhttp.Deps{
		Pool:      pool,
		Redis:     redisClient,
		Publisher: publisher,
		Mailer:    mail,
		Blobs:     blobs,
		Hub:       hub,
	}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("env", cfg.Env).Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("encerrando...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
