// internal/app/drip_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"drip_campaign_bot/internal/domain/campaign"
	"drip_campaign_bot/internal/domain/schedule"
	"drip_campaign_bot/internal/domain/subscriber"
	domainTelegram "drip_campaign_bot/internal/domain/telegram"

	"github.com/codeGROOVE-dev/retry"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

var (
	// ErrStoreIO wraps every ledger failure. These are never absorbed.
	ErrStoreIO = errors.New("schedule store failure")
	// ErrTransport wraps delivery failures. They are logged, not returned.
	ErrTransport = errors.New("step delivery failed")
)

// Timer is the in-memory registry of pending step deliveries.
type Timer interface {
	// Arm returns false without side effects if key is already armed.
	Arm(key schedule.Key, fireAt time.Time) bool
	Cancel(key schedule.Key) bool
	CancelAllForSubscriber(subscriberID int64) int
	CancelAll() int
	Pending(key schedule.Key) (time.Time, bool)
}

// FirePolicy computes the fire time of the next step from the current moment.
type FirePolicy interface {
	Next(now time.Time) time.Time
}

// Enrollment is an enroll signal from the command surface.
type Enrollment struct {
	SubscriberID int64
	Username     string
	FirstName    string
	LastName     string
	Source       string
}

// Progress describes where a subscriber is in the campaign.
type Progress struct {
	SubscriberID int64
	Source       string
	EnrolledAt   time.Time
	NextStep     int // 0-based; equals TotalSteps once completed
	TotalSteps   int
	NextFireAt   time.Time
	Scheduled    bool // NextFireAt is set
}

func (p *Progress) Completed() bool {
	return p.NextStep >= p.TotalSteps
}

// DripService drives every subscriber through the campaign steps. It is the
// only component that touches both the timer registry and the ledger.
type DripService struct {
	subscribers subscriber.Repository
	schedules   schedule.Repository
	timer       Timer
	content     campaign.Content
	client      domainTelegram.Client
	sink        campaign.Sink
	policy      FirePolicy
	logger      *logrus.Entry

	now          func() time.Time
	sendAttempts uint
	retryDelay   time.Duration
}

type DripOption func(*DripService)

func WithClock(now func() time.Time) DripOption {
	return func(s *DripService) { s.now = now }
}

// WithSendRetry enables bounded retry of failed deliveries. attempts counts
// the first try, so 1 disables retrying.
func WithSendRetry(attempts uint, delay time.Duration) DripOption {
	return func(s *DripService) {
		if attempts > 0 {
			s.sendAttempts = attempts
		}
		s.retryDelay = delay
	}
}

func WithAnalytics(sink campaign.Sink) DripOption {
	return func(s *DripService) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func NewDripService(
	subs subscriber.Repository,
	schedules schedule.Repository,
	timer Timer,
	content campaign.Content,
	client domainTelegram.Client,
	policy FirePolicy,
	logger *logrus.Entry,
	opts ...DripOption,
) *DripService {
	s := &DripService{
		subscribers:  subs,
		schedules:    schedules,
		timer:        timer,
		content:      content,
		client:       client,
		sink:         campaign.NopSink{},
		policy:       policy,
		logger:       logger,
		now:          time.Now,
		sendAttempts: 1,
		retryDelay:   time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enroll (re)starts the campaign for a subscriber at step 0. Any earlier chain
// is voided: pending timers are cancelled and ledger rows deleted. Step 0 is
// delivered right away; step 1 is scheduled only if that delivery succeeded.
// Delivery failures are logged, never returned. ErrStoreIO is returned not
// only when the subscriber upsert fails but also when clearing the old chain,
// recording step 0 as sent, or scheduling step 1 fails.
func (s *DripService) Enroll(ctx context.Context, e Enrollment) error {
	logCtx := s.logger.WithFields(logrus.Fields{"subscriber_id": e.SubscriberID, "source": e.Source})

	sub := &subscriber.Subscriber{
		ID:         e.SubscriberID,
		Username:   nullString(e.Username),
		FirstName:  nullString(e.FirstName),
		LastName:   nullString(e.LastName),
		Source:     nullString(strings.ToLower(e.Source)),
		EnrolledAt: s.now(),
	}
	if err := s.subscribers.Upsert(ctx, sub); err != nil {
		logCtx.WithError(err).Error("Failed to upsert subscriber")
		return fmt.Errorf("%w: %w", ErrStoreIO, err)
	}
	s.sink.RecordEnrollment(ctx, sub)

	cancelled := s.timer.CancelAllForSubscriber(e.SubscriberID)
	if err := s.schedules.ClearForSubscriber(ctx, e.SubscriberID); err != nil {
		logCtx.WithError(err).Error("Failed to reset subscriber schedule")
		return fmt.Errorf("%w: %w", ErrStoreIO, err)
	}
	logCtx.WithField("cancelled_timers", cancelled).Info("Subscriber enrolled, campaign restarted")

	total := s.content.StepCount()
	if total == 0 {
		logCtx.Warn("Campaign has no steps; nothing to deliver")
		return nil
	}

	if err := s.deliver(ctx, e.SubscriberID, 0); err != nil {
		logCtx.WithError(err).Warn("First step delivery failed; campaign not started")
		return nil
	}
	if err := s.schedules.MarkSent(ctx, e.SubscriberID, 0, s.now()); err != nil {
		logCtx.WithError(err).Error("Failed to record first step as sent")
		return fmt.Errorf("%w: %w", ErrStoreIO, err)
	}
	s.recordProgress(ctx, e.SubscriberID, 0)

	if total > 1 {
		return s.ScheduleStep(ctx, e.SubscriberID, 1, s.policy.Next(s.now()))
	}
	return nil
}

// ScheduleStep arms the timer for a step and records it in the ledger.
// It is idempotent: if the step is already armed nothing is written.
func (s *DripService) ScheduleStep(ctx context.Context, subscriberID int64, step int, fireAt time.Time) error {
	if step < 0 || step >= s.content.StepCount() {
		return fmt.Errorf("%w: %d", campaign.ErrStepOutOfRange, step)
	}
	key := schedule.Key{SubscriberID: subscriberID, Step: step}
	logCtx := s.logger.WithFields(logrus.Fields{"subscriber_id": subscriberID, "step": step, "fire_at": fireAt})

	if !s.timer.Arm(key, fireAt) {
		logCtx.Debug("Step already armed; skipping")
		return nil
	}
	if err := s.schedules.MarkScheduled(ctx, subscriberID, step, fireAt); err != nil {
		s.timer.Cancel(key)
		logCtx.WithError(err).Error("Failed to record scheduled step; timer cancelled")
		return fmt.Errorf("%w: %w", ErrStoreIO, err)
	}
	logCtx.Info("Step scheduled")
	return nil
}

// HandleFire delivers a due step and schedules the following one. A failed
// delivery leaves the step unsent and stops the chain for that subscriber.
func (s *DripService) HandleFire(ctx context.Context, key schedule.Key) {
	logCtx := s.logger.WithFields(logrus.Fields{"subscriber_id": key.SubscriberID, "step": key.Step})

	total := s.content.StepCount()
	if key.Step < 0 || key.Step >= total {
		logCtx.WithField("total_steps", total).Warn("Fired step is outside the campaign; ignoring")
		return
	}

	if err := s.deliver(ctx, key.SubscriberID, key.Step); err != nil {
		logCtx.WithError(err).Error("Step delivery failed; step stays unsent")
		return
	}
	if err := s.schedules.MarkSent(ctx, key.SubscriberID, key.Step, s.now()); err != nil {
		logCtx.WithError(err).Error("Failed to record step as sent; chain stopped")
		return
	}
	s.recordProgress(ctx, key.SubscriberID, key.Step)
	logCtx.Info("Step delivered")

	next := key.Step + 1
	if next >= total {
		logCtx.Info("Campaign completed")
		return
	}
	if err := s.ScheduleStep(ctx, key.SubscriberID, next, s.policy.Next(s.now())); err != nil {
		logCtx.WithError(err).Error("Failed to schedule next step")
	}
}

// AdminClearAll drops every pending timer and every ledger row. Subscribers
// are kept. It returns the number of ledger rows removed.
func (s *DripService) AdminClearAll(ctx context.Context) (int, error) {
	cancelled := s.timer.CancelAll()
	cleared, err := s.schedules.ClearAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to clear schedules")
		return 0, fmt.Errorf("%w: %w", ErrStoreIO, err)
	}
	s.logger.WithFields(logrus.Fields{"cancelled_timers": cancelled, "cleared_steps": cleared}).Warn("All schedules cleared")
	return cleared, nil
}

// Status reports a subscriber's progress. Returns subscriber.ErrNotFound for
// ids that never enrolled.
func (s *DripService) Status(ctx context.Context, subscriberID int64) (*Progress, error) {
	sub, err := s.subscribers.GetByID(ctx, subscriberID)
	if err != nil {
		if errors.Is(err, subscriber.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreIO, err)
	}
	next, err := s.schedules.NextUnsentStep(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreIO, err)
	}

	p := &Progress{
		SubscriberID: subscriberID,
		Source:       sub.Source.String,
		EnrolledAt:   sub.EnrolledAt,
		NextStep:     next,
		TotalSteps:   s.content.StepCount(),
	}
	if fireAt, ok := s.timer.Pending(schedule.Key{SubscriberID: subscriberID, Step: next}); ok {
		p.NextFireAt = fireAt
		p.Scheduled = true
	}
	return p, nil
}

func (s *DripService) deliver(ctx context.Context, subscriberID int64, step int) error {
	text, err := s.content.Step(step)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	err = retry.Do(
		func() error {
			return s.client.SendMessage(ctx, subscriberID, text, nil)
		},
		retry.Attempts(s.sendAttempts),
		retry.Delay(s.retryDelay),
		retry.MaxDelay(time.Minute),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.WithFields(logrus.Fields{"subscriber_id": subscriberID, "step": step, "attempt": n + 1}).
				WithError(err).Warn("Retrying step delivery")
		}),
		retry.RetryIf(func(err error) bool {
			// The subscriber blocked the bot; retrying cannot help.
			return !errors.Is(err, telebot.ErrBlockedByUser)
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

func (s *DripService) recordProgress(ctx context.Context, subscriberID int64, step int) {
	day := step + 1
	s.sink.RecordProgress(ctx, subscriberID, day, fmt.Sprintf("G%d", day))
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
