package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"github.com/angelmondragon/shopkeeper/internal/app"
)

func main() {
	cfg, logg, err := app.LoadConfig("bot")
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

	service, err := NewService(a)
	if err != nil {
		logg.Error(ctx, "failed to create bot service", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting telegram bot")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "bot stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "bot shutting down gracefully")
}
