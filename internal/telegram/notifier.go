package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Notifier delivers rendered messages over the Bot API. Sends are throttled
// client-side: Telegram allows roughly 30 messages per second bot-wide, and
// a tick over many due profiles can burst well past that.
type Notifier struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// NewNotifier wraps a bot client with the send rate limit.
func NewNotifier(bot *tgbotapi.BotAPI) *Notifier {
	return &Notifier{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(25), 25),
	}
}

// Deliver sends text to the chat. The error is returned to the caller to log
// and contain; it never propagates further.
func (n *Notifier) Deliver(chatID int64, text string) error {
	if err := n.limiter.Wait(context.Background()); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.bot.Send(msg)
	return err
}
