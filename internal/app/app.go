// Package app wires the shared infrastructure and domain services that every
// binary starts from.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shopkeeper/internal/cart"
	"github.com/angelmondragon/shopkeeper/internal/catalog"
	"github.com/angelmondragon/shopkeeper/internal/checkout"
	"github.com/angelmondragon/shopkeeper/internal/customers"
	"github.com/angelmondragon/shopkeeper/internal/fxrate"
	"github.com/angelmondragon/shopkeeper/internal/ledger"
	"github.com/angelmondragon/shopkeeper/internal/receipts"
	"github.com/angelmondragon/shopkeeper/internal/reports"
	"github.com/angelmondragon/shopkeeper/pkg/config"
	"github.com/angelmondragon/shopkeeper/pkg/db"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
	"github.com/angelmondragon/shopkeeper/pkg/metrics"
	"github.com/angelmondragon/shopkeeper/pkg/migrate"
	"github.com/angelmondragon/shopkeeper/pkg/redis"
)

// App holds the process-wide clients and services.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client // nil when Redis is not configured
	Location *time.Location
	Registry *prometheus.Registry

	Rates     *fxrate.Provider
	Catalog   catalog.Service
	Cart      *cart.Service
	Customers customers.Service
	Checkout  checkout.Service
	Ledger    ledger.Service
	Reports   *reports.Service
	Receipts  *receipts.Renderer
}

// LoadConfig reads .env when present, then the environment, and builds the
// service logger from the result.
func LoadConfig(service string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: service})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		return nil, nil, err
	}
	cfg.Service.Kind = service

	logg = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Environment: cfg.App.Env,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	return cfg, logg, nil
}

// New connects to the database (and Redis when configured) and builds the
// domain services. Close releases the connections.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*App, error) {
	if cfg == nil || logg == nil {
		return nil, errors.New("config and logger are required")
	}

	loc, err := cfg.Store.Location()
	if err != nil {
		return nil, fmt.Errorf("load store timezone %q: %w", cfg.Store.Timezone, err)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	a := &App{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Location: loc,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("run dev migrations: %w", err)
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		a.Redis = redisClient
	} else {
		logg.Warn(ctx, "redis not configured, using in-process sessions and locks")
	}

	if err := a.buildServices(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildServices() error {
	conn := a.DB.DB()

	rates, err := fxrate.NewProvider(a.Config.FX, a.Redis, a.Logger)
	if err != nil {
		return fmt.Errorf("fx provider: %w", err)
	}
	a.Rates = rates

	if a.Catalog, err = catalog.NewService(catalog.NewRepository(conn), a.DB, rates); err != nil {
		return fmt.Errorf("catalog service: %w", err)
	}
	if a.Cart, err = cart.NewService(a.Catalog); err != nil {
		return fmt.Errorf("cart service: %w", err)
	}
	if a.Customers, err = customers.NewService(customers.NewRepository(conn)); err != nil {
		return fmt.Errorf("customer service: %w", err)
	}

	ledgerRepo := ledger.NewRepository(conn)
	a.Checkout, err = checkout.NewService(a.DB, a.Customers, ledgerRepo, checkout.Options{
		Logger:      a.Logger,
		Metrics:     metrics.NewCheckoutMetrics(a.Registry),
		SellerPhone: a.Config.Store.SellerPhone,
	})
	if err != nil {
		return fmt.Errorf("checkout service: %w", err)
	}
	if a.Ledger, err = ledger.NewService(ledgerRepo, a.Customers); err != nil {
		return fmt.Errorf("ledger service: %w", err)
	}
	if a.Reports, err = reports.NewService(reports.NewRepository(conn), a.Location); err != nil {
		return fmt.Errorf("reports service: %w", err)
	}

	a.Receipts, err = receipts.NewRenderer(a.Ledger, receipts.Options{
		Store:    a.Config.Store,
		Receipt:  a.Config.Receipt,
		Location: a.Location,
		Logger:   a.Logger,
		Metrics:  metrics.NewReceiptMetrics(a.Registry),
	})
	if err != nil {
		return fmt.Errorf("receipt renderer: %w", err)
	}
	return nil
}

// Ping checks every configured dependency, logging each failure.
func (a *App) Ping(ctx context.Context) error {
	if err := pingDependency(ctx, a.Logger, "database", a.DB.Ping); err != nil {
		return err
	}
	if a.Redis != nil {
		if err := pingDependency(ctx, a.Logger, "redis", a.Redis.Ping); err != nil {
			return err
		}
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var err error
	if a.Redis != nil {
		err = multierr.Append(err, a.Redis.Close())
	}
	if a.DB != nil {
		err = multierr.Append(err, a.DB.Close())
	}
	return err
}
