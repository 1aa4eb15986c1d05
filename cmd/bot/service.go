package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/angelmondragon/shopkeeper/internal/app"
	"github.com/angelmondragon/shopkeeper/internal/bot"
	"github.com/angelmondragon/shopkeeper/internal/dialogue"
	"github.com/angelmondragon/shopkeeper/pkg/metrics"
)

const telegramTimeout = 60 * time.Second

// Service runs the Telegram poll loop, the session sweeper and a metrics
// listener side by side.
type Service struct {
	app     *app.App
	bot     *bot.Bot
	store   dialogue.Store
	sweeper *dialogue.MemoryStore
}

func NewService(a *app.App) (*Service, error) {
	if a == nil {
		return nil, errors.New("app is required")
	}
	cfg := a.Config
	if cfg.Telegram.Token == "" {
		return nil, errors.New("telegram token is required")
	}

	s := &Service{app: a}
	if a.Redis != nil {
		store, err := dialogue.NewRedisStore(a.Redis, cfg.Session.TTL)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		s.store = store
	} else {
		memory := dialogue.NewMemoryStore(cfg.Session.TTL)
		s.store = memory
		s.sweeper = memory
	}

	manager, err := dialogue.NewManager(dialogue.Deps{
		Catalog:   a.Catalog,
		Cart:      a.Cart,
		Checkout:  a.Checkout,
		Customers: a.Customers,
		Reports:   a.Reports,
		Ledger:    a.Ledger,
	}, dialogue.Options{
		Store:    s.store,
		Logger:   a.Logger,
		Location: a.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("dialogue manager: %w", err)
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: telegramTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram api: %w", err)
	}
	api.Debug = cfg.Telegram.Debug

	opts := bot.Options{
		Logger:       a.Logger,
		AllowedUsers: cfg.Telegram.AllowedUserIDs,
		AdminChats:   cfg.Telegram.AdminChatIDs,
		PollTimeout:  cfg.Telegram.PollTimeout,
		RateLimit:    cfg.Telegram.RateLimit,
		RateWindow:   cfg.Telegram.RateWindow,
	}
	if a.Redis != nil {
		opts.Limiter = a.Redis
	}
	if len(opts.AllowedUsers) == 0 {
		a.Logger.Warn(context.Background(), "telegram allow-list is empty, every user is admitted")
	}

	s.bot, err = bot.New(api, manager, a.Receipts, opts)
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}
	a.Logger.Info(a.Logger.WithField(context.Background(), "bot_user", api.Self.UserName), "telegram bot authorized")
	return s, nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.app.Ping(ctx); err != nil {
		return err
	}

	if s.sweeper != nil {
		go s.sweeper.RunSweeper(ctx, s.app.Config.Session.SweepInterval)
	}

	server := &http.Server{
		Addr:              ":" + s.app.Config.App.Port,
		Handler:           metricsMux(s.app),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.app.Logger.Error(ctx, "metrics listener stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return s.bot.Run(ctx)
}

func metricsMux(a *app.App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.Registry))
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
