package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/possync/api/controllers"
	"github.com/angelmondragon/possync/api/routes"
	"github.com/angelmondragon/possync/internal/catalog"
	"github.com/angelmondragon/possync/internal/localstore"
	"github.com/angelmondragon/possync/internal/pos"
	"github.com/angelmondragon/possync/internal/queue"
	"github.com/angelmondragon/possync/internal/reachability"
	"github.com/angelmondragon/possync/internal/remote"
	"github.com/angelmondragon/possync/internal/syncer"
	"github.com/angelmondragon/possync/pkg/auth"
	"github.com/angelmondragon/possync/pkg/config"
	"github.com/angelmondragon/possync/pkg/logger"
	"github.com/angelmondragon/possync/pkg/metrics"
	"github.com/angelmondragon/possync/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "pos-agent"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "pos-agent",
		TerminalID:  cfg.Terminal.ID,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithStoreID(ctx, cfg.Terminal.StoreID)

	identity := auth.TerminalIdentity{TerminalID: cfg.Terminal.ID, StoreID: cfg.Terminal.StoreID}
	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	// A store that fails to open degrades the agent to remote-only.
	var store *localstore.Store
	if cfg.LocalStore.Enabled {
		store, err = localstore.Open(ctx, cfg.LocalStore.Path)
		if err != nil {
			logg.Error(logg.WithField(ctx, "path", cfg.LocalStore.Path), "local store unavailable; running remote-only", err)
		}
	}

	backend, err := remote.NewHTTPClient(cfg.Remote, identity, nil)
	if err != nil {
		logg.Error(ctx, "failed to create remote client", err)
		os.Exit(1)
	}

	var (
		manual    *reachability.ManualSignal
		ifaces    *reachability.InterfaceSignal
		netSignal reachability.Signal
	)
	switch strings.ToLower(cfg.Reachability.Signal) {
	case config.SignalManual:
		manual = reachability.NewManualSignal(true)
		netSignal = manual
	default:
		ifaces = reachability.NewInterfaceSignal(cfg.Reachability.PollInterval)
		netSignal = ifaces
	}

	monitor, err := reachability.NewMonitor(reachability.MonitorParams{
		Signal:       netSignal,
		Prober:       reachability.NewHTTPProber(cfg.ResolveProbeURL(), cfg.Reachability.ProbeTimeout),
		Logger:       logg,
		Metrics:      syncMetrics,
		PollInterval: cfg.Reachability.PollInterval,
		SettleDelay:  cfg.Reachability.SettleDelay,
	})
	if err != nil {
		logg.Error(ctx, "failed to create reachability monitor", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	engineParams := syncer.EngineParams{
		Queue:        queue.New(nil),
		Backend:      backend,
		Reachability: monitor,
		Logger:       logg,
		Metrics:      syncMetrics,
		MaxRetries:   cfg.Sync.MaxRetries,
	}
	var q *queue.Queue
	if store != nil {
		q = queue.New(store)
		engineParams.Queue = q
		engineParams.Sales = store
	}
	if redisClient != nil {
		lock, err := syncer.NewRedisLock(redisClient, redisClient.LockKey("drain", cfg.Terminal.StoreID), cfg.Sync.DrainLockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create drain lock", err)
			os.Exit(1)
		}
		engineParams.Lock = lock
	}

	engine, err := syncer.NewEngine(engineParams)
	if err != nil {
		logg.Error(ctx, "failed to create sync engine", err)
		os.Exit(1)
	}
	monitor.SetDrainer(engine)

	catalogParams := catalog.Params{Backend: backend, Reachability: monitor, Logger: logg}
	if store != nil {
		catalogParams.Store = store
	}
	cache, err := catalog.New(catalogParams)
	if err != nil {
		logg.Error(ctx, "failed to create product cache", err)
		os.Exit(1)
	}
	engine.AddInvalidator(cache)

	svc, err := pos.NewService(pos.ServiceParams{
		Store:    store,
		Queue:    q,
		Monitor:  monitor,
		Engine:   engine,
		Catalog:  cache,
		Identity: identity,
		Logger:   logg,
		Metrics:  syncMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create pos service", err)
		os.Exit(1)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Error(context.Background(), "error closing pos service", err)
		}
	}()

	deps := routes.AgentDeps{
		Service:  svc,
		Gatherer: registry,
		Ready:    map[string]controllers.Pinger{},
	}
	if store != nil {
		deps.Ready["local_store"] = store
	}
	if manual != nil {
		deps.Network = manual
		deps.Checker = monitor
	}
	if redisClient != nil {
		deps.Idempotency = redisClient
		deps.Ready["redis"] = redisClient
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewAgentRouter(cfg, logg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"offline_capable": svc.OfflineCapable(),
		"signal":          cfg.Reachability.Signal,
	})
	logg.Info(ctx, "starting pos agent")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitor.Run(gctx)
	})
	if ifaces != nil {
		g.Go(func() error {
			return ifaces.Run(gctx)
		})
	}
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "pos agent stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "pos agent shutting down gracefully")
}
