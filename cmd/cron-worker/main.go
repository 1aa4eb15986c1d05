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

	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/angelmondragon/shopkeeper/internal/app"
	"github.com/angelmondragon/shopkeeper/internal/bot"
	"github.com/angelmondragon/shopkeeper/internal/cron"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
	"github.com/angelmondragon/shopkeeper/pkg/metrics"
)

const (
	lockKeyFormat   = "cron-worker:%s"
	markerKeyFormat = "shk:cron:%s:done:"
)

func main() {
	cfg, logg, err := app.LoadConfig("cron-worker")
	if err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
	})

	a, err := app.New(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logg.Error(context.Background(), "error closing connections", err)
		}
	}()
	requireResource(ctx, logg, "dependencies", a.Ping(ctx))

	var (
		lock   cron.Lock
		marker cron.Marker
	)
	if a.Redis != nil {
		lock, err = cron.NewRedisLock(a.Redis, a.Redis.LockKey(fmt.Sprintf(lockKeyFormat, envOrLocal(cfg.App.Env))), cfg.Cron.LockTTL)
		requireResource(ctx, logg, "cron lock", err)
		marker, err = cron.NewRedisMarker(a.Redis, fmt.Sprintf(markerKeyFormat, envOrLocal(cfg.App.Env)))
		requireResource(ctx, logg, "cron marker", err)
	} else {
		logg.Warn(ctx, "redis not configured, cron runs with a process-local lock")
		lock = &cron.LocalLock{}
		marker = cron.NewMemoryMarker()
	}

	notifier, err := newNotifier(cfg.Telegram.Token, cfg.Telegram.AdminChatIDs)
	requireResource(ctx, logg, "telegram notifier", err)

	reportJob, err := cron.NewSalesReportJob(cron.SalesReportJobParams{
		Logger:   logg,
		Reports:  a.Reports,
		Notifier: notifier,
		Marker:   marker,
		Location: a.Location,
		Hour:     cfg.Cron.ReportHour,
	})
	requireResource(ctx, logg, "sales report job", err)

	lowStockJob, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:    logg,
		Catalog:   a.Catalog,
		Notifier:  notifier,
		Marker:    marker,
		Location:  a.Location,
		Threshold: cfg.Cron.LowStockThreshold,
	})
	requireResource(ctx, logg, "low stock job", err)

	registry, err := cron.NewRegistry(reportJob, lowStockJob)
	requireResource(ctx, logg, "cron registry", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(a.Registry),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	requireResource(ctx, logg, "cron service", err)

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           metrics.Handler(a.Registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()
	defer server.Close()

	logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

// newNotifier sends to the admin chats through the bot token. Without a
// token or admin chats notifications are dropped.
func newNotifier(token string, chats []int64) (cron.Notifier, error) {
	if token == "" || len(chats) == 0 {
		return bot.NewAdminNotifier(nil, nil), nil
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, err
	}
	return bot.NewAdminNotifier(api, chats), nil
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
