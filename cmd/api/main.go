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
	"go.uber.org/multierr"

	"github.com/angelmondragon/yardgate-backend/api/routes"
	"github.com/angelmondragon/yardgate-backend/internal/desk"
	"github.com/angelmondragon/yardgate-backend/internal/gate"
	"github.com/angelmondragon/yardgate-backend/internal/ledger"
	"github.com/angelmondragon/yardgate-backend/internal/reconciliation"
	"github.com/angelmondragon/yardgate-backend/internal/transactions"
	"github.com/angelmondragon/yardgate-backend/pkg/config"
	"github.com/angelmondragon/yardgate-backend/pkg/db"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
	"github.com/angelmondragon/yardgate-backend/pkg/metrics"
	"github.com/angelmondragon/yardgate-backend/pkg/migrate"
	"github.com/angelmondragon/yardgate-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Node:        cfg.App.Location,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		dbClient    *db.Client
		dbP         db.Pinger
		redisClient *redis.Client
		store       transactions.Store
		ledgerRepo  ledger.Repository
	)

	closeAll := func() {
		var errs error
		if redisClient != nil {
			errs = multierr.Append(errs, redisClient.Close())
		}
		if dbClient != nil {
			errs = multierr.Append(errs, dbClient.Close())
		}
		if errs != nil {
			logg.Error(context.Background(), "error closing dependencies", errs)
		}
	}
	defer closeAll()

	if cfg.Store.UsesDatabase() {
		dbClient, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			closeAll()
			os.Exit(1)
		}
		dbP = dbClient

		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			closeAll()
			os.Exit(1)
		}

		store = transactions.NewRepository(dbClient.DB())
		ledgerRepo = ledger.NewRepository(dbClient.DB())
	} else {
		logg.Warn(ctx, "memory store selected; records are lost on restart")
		store = transactions.NewMemoryStore()
		ledgerRepo = ledger.NewMemoryRepository()
	}

	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			closeAll()
			os.Exit(1)
		}
	} else if cfg.RateLimit.Enabled() {
		logg.Warn(ctx, "submit rate limit configured without redis; throttle disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	transitionMetrics := metrics.NewTransitionMetrics(registry)

	ledgerService, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(ctx, "failed to create ledger service", err)
		closeAll()
		os.Exit(1)
	}

	deskService, err := desk.NewService(desk.ServiceParams{
		Store:    store,
		Ledger:   ledgerService,
		Logger:   logg,
		Metrics:  transitionMetrics,
		Location: cfg.App.Location,
	})
	if err != nil {
		logg.Error(ctx, "failed to create desk service", err)
		closeAll()
		os.Exit(1)
	}

	gateService, err := gate.NewService(gate.ServiceParams{
		Store:   store,
		Ledger:  ledgerService,
		Logger:  logg,
		Metrics: transitionMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create gate service", err)
		closeAll()
		os.Exit(1)
	}

	tz, err := cfg.Reports.Location()
	if err != nil {
		logg.Error(ctx, "failed to resolve reports timezone", err)
		closeAll()
		os.Exit(1)
	}
	reconciliationService, err := reconciliation.NewService(reconciliation.ServiceParams{
		Store:    store,
		Logger:   logg,
		Metrics:  transitionMetrics,
		Timezone: tz,
	})
	if err != nil {
		logg.Error(ctx, "failed to create reconciliation service", err)
		closeAll()
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     id,
		"store_driver": cfg.Store.Driver,
		"location":     cfg.App.Location,
		"redis":        redisClient != nil,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			registry,
			dbP,
			redisClient,
			store,
			ledgerService,
			deskService,
			gateService,
			reconciliationService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			closeAll()
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}
	logg.Info(logCtx, "api server stopped")
}
