package app

import (
	"context"
	"fmt"
	"strings"

	"drip_campaign_bot/internal/domain/campaign"
	"drip_campaign_bot/internal/domain/schedule"
	domainTelegram "drip_campaign_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

type AdminService struct {
	drip            *DripService
	schedules       schedule.Repository
	content         campaign.Content
	client          domainTelegram.Client
	adminTelegramID int64
	logger          *logrus.Entry
}

func NewAdminService(
	drip *DripService,
	schedules schedule.Repository,
	content campaign.Content,
	client domainTelegram.Client,
	adminID int64,
	logger *logrus.Entry,
) *AdminService {
	return &AdminService{
		drip:            drip,
		schedules:       schedules,
		content:         content,
		client:          client,
		adminTelegramID: adminID,
		logger:          logger,
	}
}

// IsAdmin reports whether the Telegram user is the configured admin.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return telegramID == s.adminTelegramID
}

// ClearAll wipes the whole schedule ledger. Destructive and irreversible.
func (s *AdminService) ClearAll(ctx context.Context, performingAdminID int64) (int, error) {
	if !s.IsAdmin(performingAdminID) {
		return 0, ErrAdminNotAuthorized
	}
	return s.drip.AdminClearAll(ctx)
}

// Stats returns campaign totals.
func (s *AdminService) Stats(ctx context.Context, performingAdminID int64) (*schedule.Summary, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.summarize(ctx)
}

// SendDigest sends the campaign totals to the admin chat.
func (s *AdminService) SendDigest(ctx context.Context) error {
	summary, err := s.summarize(ctx)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, s.adminTelegramID, FormatSummary(summary, s.content.StepCount()), nil); err != nil {
		return fmt.Errorf("%w: admin digest: %w", ErrTransport, err)
	}
	s.logger.WithField("subscribers", summary.Subscribers).Info("Admin digest sent")
	return nil
}

func (s *AdminService) summarize(ctx context.Context) (*schedule.Summary, error) {
	summary, err := s.schedules.Summarize(ctx, s.content.StepCount())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreIO, err)
	}
	return summary, nil
}

// FormatSummary renders campaign totals for a chat message.
func FormatSummary(summary *schedule.Summary, totalSteps int) string {
	var b strings.Builder
	b.WriteString("Campaign stats\n")
	fmt.Fprintf(&b, "Subscribers: %d\n", summary.Subscribers)
	fmt.Fprintf(&b, "Active: %d\n", summary.Active)
	fmt.Fprintf(&b, "Completed: %d\n", summary.Completed)
	fmt.Fprintf(&b, "Average day: %.1f / %d", summary.AverageDay, totalSteps)
	return b.String()
}
