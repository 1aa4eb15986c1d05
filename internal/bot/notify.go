package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/multierr"
)

// AdminNotifier pushes plain messages to the admin chats. The cron worker
// uses it without running the poll loop.
type AdminNotifier struct {
	api   API
	chats []int64
}

func NewAdminNotifier(api API, chats []int64) *AdminNotifier {
	return &AdminNotifier{api: api, chats: append([]int64(nil), chats...)}
}

// Notify attempts every chat and combines the failures. With no chats
// configured it is a no-op.
func (n *AdminNotifier) Notify(ctx context.Context, text string) error {
	if n == nil || n.api == nil || len(n.chats) == 0 {
		return nil
	}
	var errs error
	for _, chatID := range n.chats {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if _, err := n.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("notify chat %d: %w", chatID, err))
		}
	}
	return errs
}
