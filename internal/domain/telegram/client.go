package telegram

import (
	"context"

	"gopkg.in/telebot.v3"
)

// Client sends messages to Telegram chats.
// Keeps the application layer independent of the bot library's Bot type.
type Client interface {
	SendMessage(ctx context.Context, recipientChatID int64, text string, options *telebot.SendOptions) error
}
