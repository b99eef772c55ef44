// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"drip_campaign_bot/internal/app"
	"drip_campaign_bot/internal/domain/subscriber"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Campaign is what the subscriber commands need from the drip service.
type Campaign interface {
	Enroll(ctx context.Context, e app.Enrollment) error
	Status(ctx context.Context, subscriberID int64) (*app.Progress, error)
}

type botCommands struct {
	ctx           context.Context
	campaign      Campaign
	welcome       string
	defaultSource string
	adminID       int64
	location      *time.Location
	logger        *logrus.Entry
}

// RegisterBotCommands wires /start, /status and /help.
func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	campaign Campaign,
	welcome string,
	defaultSource string,
	adminTelegramID int64,
	location *time.Location,
	baseLogger *logrus.Entry,
) {
	h := newBotCommands(ctx, campaign, welcome, defaultSource, adminTelegramID, location, baseLogger)
	b.Handle("/start", h.start)
	b.Handle("/status", h.status)
	b.Handle("/help", h.help)
}

func newBotCommands(ctx context.Context, campaign Campaign, welcome, defaultSource string, adminID int64, location *time.Location, baseLogger *logrus.Entry) *botCommands {
	if location == nil {
		location = time.UTC
	}
	return &botCommands{
		ctx:           ctx,
		campaign:      campaign,
		welcome:       welcome,
		defaultSource: defaultSource,
		adminID:       adminID,
		location:      location,
		logger:        baseLogger.WithField("handler_group", "subscriber"),
	}
}

// start enrolls the sender. The deep-link payload (t.me/bot?start=<source>)
// is the acquisition source.
func (h *botCommands) start(c telebot.Context) error {
	sender := c.Sender()
	source := h.defaultSource
	if args := c.Args(); len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		source = strings.ToLower(strings.TrimSpace(args[0]))
	}
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/start", "sender_id": sender.ID, "source": source})
	logCtx.Info("Processing /start command")

	err := h.campaign.Enroll(h.ctx, app.Enrollment{
		SubscriberID: sender.ID,
		Username:     sender.Username,
		FirstName:    sender.FirstName,
		LastName:     sender.LastName,
		Source:       source,
	})
	if err != nil {
		logCtx.WithError(err).Error("Enrollment failed")
		return c.Send("Something went wrong, please try /start again later.")
	}
	return c.Send(h.welcome)
}

func (h *botCommands) status(c telebot.Context) error {
	senderID := c.Sender().ID
	logCtx := h.logger.WithFields(logrus.Fields{"command": "/status", "sender_id": senderID})
	logCtx.Info("Processing /status command")

	p, err := h.campaign.Status(h.ctx, senderID)
	if errors.Is(err, subscriber.ErrNotFound) {
		return c.Send("You are not enrolled yet. Send /start to begin.")
	}
	if err != nil {
		logCtx.WithError(err).Error("Error reading subscriber progress")
		return c.Send("Could not read your progress, please try again later.")
	}
	return c.Send(formatProgress(p, h.location))
}

func (h *botCommands) help(c telebot.Context) error {
	var helpText strings.Builder
	helpText.WriteString("Available commands:\n\n")
	helpText.WriteString("/start - (re)start the daily messages from day 1\n")
	helpText.WriteString("/status - show your progress\n")
	helpText.WriteString("/help - show this message")
	if c.Sender().ID == h.adminID {
		helpText.WriteString("\n\nAdmin commands:\n\n")
		helpText.WriteString("/stats - campaign totals\n")
		helpText.WriteString("/admin_clear - delete every scheduled message for every subscriber")
	}
	return c.Send(helpText.String())
}

func formatProgress(p *app.Progress, loc *time.Location) string {
	if p.Completed() {
		return fmt.Sprintf("You completed all %d days. Send /start to begin again.", p.TotalSteps)
	}
	delivered := p.NextStep
	msg := fmt.Sprintf("Day %d of %d delivered.", delivered, p.TotalSteps)
	if p.Scheduled {
		msg += fmt.Sprintf("\nNext message: %s", p.NextFireAt.In(loc).Format("2006-01-02 15:04 MST"))
	} else {
		msg += "\nNo message is scheduled. Send /start to restart."
	}
	return msg
}
