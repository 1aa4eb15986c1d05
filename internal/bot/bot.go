// Package bot connects Telegram chats to the dialogue manager.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/shopkeeper/internal/dialogue"
	"github.com/angelmondragon/shopkeeper/internal/receipts"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgDenied      = "❌ Sizga kirish taqiqlangan."
	msgSlowDown    = "⏳ Juda ko'p so'rov. Birozdan keyin urinib ko'ring."
	msgUnavailable = "⚠️ Xizmat vaqtincha ishlamayapti. Keyinroq urinib ko'ring."
	msgTextOnly    = "Iltimos, matn yuboring."
)

// API is the subset of tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type dialog interface {
	Handle(ctx context.Context, sessionID string, userID int64, text string) (*dialogue.Reply, error)
}

type receiptRenderer interface {
	Render(ctx context.Context, saleID uint64, format receipts.Format) (*receipts.Artifact, error)
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type Options struct {
	Logger       *logger.Logger
	AllowedUsers []int64
	AdminChats   []int64
	PollTimeout  int
	// Limiter is optional; without it messages are never throttled.
	Limiter    rateLimiter
	RateLimit  int64
	RateWindow time.Duration
}

// Bot long-polls Telegram and answers each update on its own goroutine.
type Bot struct {
	api      API
	dialog   dialog
	receipts receiptRenderer
	logg     *logger.Logger

	allowed     map[int64]struct{}
	admins      []int64
	pollTimeout int
	limiter     rateLimiter
	rateLimit   int64
	rateWindow  time.Duration

	wg sync.WaitGroup
}

func New(api API, d dialog, renderer receiptRenderer, opts Options) (*Bot, error) {
	if api == nil {
		return nil, fmt.Errorf("telegram api required")
	}
	if d == nil {
		return nil, fmt.Errorf("dialogue manager required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("receipt renderer required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	allowed := make(map[int64]struct{}, len(opts.AllowedUsers))
	for _, id := range opts.AllowedUsers {
		allowed[id] = struct{}{}
	}
	return &Bot{
		api:         api,
		dialog:      d,
		receipts:    renderer,
		logg:        opts.Logger,
		allowed:     allowed,
		admins:      append([]int64(nil), opts.AdminChats...),
		pollTimeout: opts.PollTimeout,
		limiter:     opts.Limiter,
		rateLimit:   opts.RateLimit,
		rateWindow:  opts.RateWindow,
	}, nil
}

// Run polls for updates until ctx is canceled, then waits for in-flight
// handlers to finish.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(cfg)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			b.wg.Add(1)
			go func(u tgbotapi.Update) {
				defer b.wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}

// HandleUpdate answers a single update. It never panics the poll loop.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	ctx = b.logg.WithField(ctx, "update_id", update.UpdateID)
	ctx = b.logg.WithChat(ctx, chatID, msg.From.ID)

	defer func() {
		if r := recover(); r != nil {
			b.logg.Error(ctx, "update handler panicked", fmt.Errorf("panic: %v", r))
			b.sendText(ctx, chatID, msgUnavailable, nil)
		}
	}()

	if !b.isAllowed(msg.From.ID) {
		b.logg.Warn(ctx, "message from user outside allow-list")
		b.sendText(ctx, chatID, msgDenied, nil)
		return
	}
	if !b.allow(ctx, msg.From.ID) {
		b.sendText(ctx, chatID, msgSlowDown, nil)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		b.sendText(ctx, chatID, msgTextOnly, nil)
		return
	}

	reply, err := b.dialog.Handle(ctx, SessionID(chatID), msg.From.ID, text)
	if err != nil {
		b.logg.Error(ctx, "dialogue failed", err)
		b.sendText(ctx, chatID, msgUnavailable, nil)
		return
	}
	b.sendText(ctx, chatID, reply.Text, reply.Options)
	if reply.ReceiptSaleID != 0 {
		b.sendReceipt(ctx, chatID, reply.ReceiptSaleID)
	}
}

// SessionID keys dialogue sessions by chat.
func SessionID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

// An empty allow-list admits everyone.
func (b *Bot) isAllowed(userID int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[userID]
	return ok
}

// allow applies the per-user fixed window. Limiter outages fail open.
func (b *Bot) allow(ctx context.Context, userID int64) bool {
	if b.limiter == nil || b.rateLimit <= 0 || b.rateWindow <= 0 {
		return true
	}
	ok, _, err := b.limiter.FixedWindowAllow(ctx, fmt.Sprintf("tg:%d", userID), b.rateLimit, b.rateWindow)
	if err != nil {
		b.logg.Warn(ctx, "rate limiter unavailable: "+err.Error())
		return true
	}
	return ok
}

// sendReceipt sends the PNG receipt, or its text form when the image
// could not be produced.
func (b *Bot) sendReceipt(ctx context.Context, chatID int64, saleID uint64) {
	ctx = b.logg.WithSaleID(ctx, saleID)
	artifact, err := b.receipts.Render(ctx, saleID, receipts.FormatPNG)
	if err != nil {
		b.logg.Error(ctx, "receipt render failed", err)
		b.sendText(ctx, chatID, msgUnavailable, nil)
		return
	}
	if artifact.Format != receipts.FormatPNG {
		b.sendText(ctx, chatID, string(artifact.Body), nil)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("chek_%d.png", saleID),
		Bytes: artifact.Body,
	})
	photo.Caption = fmt.Sprintf("🧾 Chek №%d", saleID)
	if _, err := b.api.Send(photo); err != nil {
		b.logg.Error(ctx, "sending receipt photo failed", err)
	}
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string, options [][]string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(options) > 0 {
		msg.ReplyMarkup = keyboard(options)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logg.Error(ctx, "sending message failed", err)
	}
}

func keyboard(options [][]string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(options))
	for _, row := range options {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}

// Notify sends text to every admin chat.
func (b *Bot) Notify(ctx context.Context, text string) error {
	return NewAdminNotifier(b.api, b.admins).Notify(ctx, text)
}
