package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/possync/api/controllers"
	"github.com/angelmondragon/possync/api/routes"
	"github.com/angelmondragon/possync/internal/remote"
	"github.com/angelmondragon/possync/pkg/config"
	"github.com/angelmondragon/possync/pkg/db"
	"github.com/angelmondragon/possync/pkg/logger"
	"github.com/angelmondragon/possync/pkg/migrate"
	"github.com/angelmondragon/possync/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "remote-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.LoadRemoteAPI()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "remote-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := routes.RemoteDeps{
		Backend:  remote.NewGormBackend(dbClient.DB(), remote.WithIdempotentSaleInserts(cfg.Sync.SaleIdempotency)),
		Gatherer: registry,
		Ready:    map[string]controllers.Pinger{"db": dbClient},
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		deps.Idempotency = redisClient
		deps.Ready["redis"] = redisClient
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":              cfg.App.Env,
		"addr":             addr,
		"driver":           dbClient.Driver(),
		"sale_idempotency": cfg.Sync.SaleIdempotency,
		"terminal_auth":    cfg.Remote.JWTSecret != "",
	})
	logg.Info(ctx, "starting remote api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRemoteRouter(cfg, logg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "remote api shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "remote api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "remote api shutting down gracefully")
}
