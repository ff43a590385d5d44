package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vocalroom/internal/config"
	"vocalroom/internal/metrics"
	"vocalroom/internal/server"
	"vocalroom/internal/session"
	"vocalroom/internal/store"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("VOCALROOM_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open backend error")
	}
	defer backend.Close()

	if cfg.CacheEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		backend = store.NewCached(backend, rdb, cfg.CacheTTL(), &logger)
		logger.Info().Str("address", cfg.Redis.Address).Msg("snapshot cache enabled")
	}

	factory := func() *session.Controller {
		return session.NewController(backend, cfg.Booking.AdminLabel, &logger,
			session.WithDefaultUser(cfg.Booking.DefaultUser),
		)
	}

	srv := server.New(backend, factory, &logger, cfg.Booking.RatePerSec, cfg.Booking.RateBurst)
	go srv.RunSessionCleanup(ctx)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Int("port", cfg.Server.Port).Str("storage", cfg.StorageMode()).Msg("reservation service started")
	if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.Backend, error) {
	switch cfg.StorageMode() {
	case config.ModePostgres:
		return store.NewPostgres(ctx, cfg.Database.PostgresURL, logger)
	case config.ModeSQLite:
		return store.NewSQLite(cfg.Database.SQLitePath, logger)
	default:
		logger.Warn().Msg("no database configured; reservations will not survive a restart")
		return store.NewMemory(), nil
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
