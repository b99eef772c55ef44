// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// sender is the part of *telebot.Bot used for outgoing messages.
type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
// Sends are throttled to stay under the Bot API global limit.
type TelebotAdapter struct {
	bot     sender
	limiter *rate.Limiter
}

// NewTelebotAdapter limits sends to ratePerSecond; zero or less disables the limit.
func NewTelebotAdapter(b *telebot.Bot, ratePerSecond float64) *TelebotAdapter {
	return newAdapter(b, ratePerSecond)
}

func newAdapter(b sender, ratePerSecond float64) *TelebotAdapter {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSecond > 0 {
		burst := int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &TelebotAdapter{bot: b, limiter: limiter}
}

// SendMessage sends a text message to the specified recipient.
func (tba *TelebotAdapter) SendMessage(ctx context.Context, recipientChatID int64, text string, options *telebot.SendOptions) error {
	if err := tba.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if options == nil {
		options = &telebot.SendOptions{}
	}

	recipient := &telebot.User{ID: recipientChatID} // subscribers talk to the bot in a private chat
	_, err := tba.bot.Send(recipient, text, options)
	return err
}
