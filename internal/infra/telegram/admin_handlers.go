package telegram

import (
	"context"
	"errors"
	"fmt"

	"drip_campaign_bot/internal/app"
	"drip_campaign_bot/internal/domain/schedule"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// AdminActions is what the admin commands need from the admin service.
type AdminActions interface {
	ClearAll(ctx context.Context, performingAdminID int64) (int, error)
	Stats(ctx context.Context, performingAdminID int64) (*schedule.Summary, error)
}

const notAuthorizedReply = "Error: you are not allowed to run this command."

type adminCommands struct {
	ctx        context.Context
	admin      AdminActions
	totalSteps int
	adminID    int64
	logger     *logrus.Entry
}

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, admin service, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, admin AdminActions, totalSteps int, adminTelegramID int64, baseLogger *logrus.Entry) {
	h := &adminCommands{ctx: ctx, admin: admin, totalSteps: totalSteps, adminID: adminTelegramID, logger: baseLogger}
	b.Handle("/admin_clear", h.clear)
	b.Handle("/stats", h.stats)
}

func (h *adminCommands) clear(c telebot.Context) error {
	handlerLogger := h.logger.WithFields(logrus.Fields{
		"handler":   "/admin_clear",
		"sender_id": c.Sender().ID,
	})
	handlerLogger.Info("Command received")

	if c.Sender().ID != h.adminID {
		handlerLogger.Warn("Unauthorized access attempt")
		return c.Send(notAuthorizedReply)
	}

	cleared, err := h.admin.ClearAll(h.ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, app.ErrAdminNotAuthorized) {
			handlerLogger.WithError(err).Warn("Admin not authorized (service level)")
			return c.Send(notAuthorizedReply)
		}
		handlerLogger.WithError(err).Error("Failed to clear schedules")
		return c.Send(fmt.Sprintf("Failed to clear schedules: %s", err.Error()))
	}

	handlerLogger.WithField("cleared", cleared).Info("Schedules cleared")
	return c.Send(fmt.Sprintf("Cleared %d scheduled messages.", cleared))
}

func (h *adminCommands) stats(c telebot.Context) error {
	handlerLogger := h.logger.WithFields(logrus.Fields{
		"handler":   "/stats",
		"sender_id": c.Sender().ID,
	})
	if c.Sender().ID != h.adminID {
		handlerLogger.Warn("Unauthorized access attempt")
		return c.Send(notAuthorizedReply)
	}

	summary, err := h.admin.Stats(h.ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, app.ErrAdminNotAuthorized) {
			return c.Send(notAuthorizedReply)
		}
		handlerLogger.WithError(err).Error("Failed to read campaign stats")
		return c.Send(fmt.Sprintf("Failed to read campaign stats: %s", err.Error()))
	}
	return c.Send(app.FormatSummary(summary, h.totalSteps))
}
