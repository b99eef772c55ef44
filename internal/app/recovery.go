package app

import (
	"context"
	"fmt"

	"drip_campaign_bot/internal/domain/campaign"
	"drip_campaign_bot/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

// RecoveryResult counts what a recovery pass did with the unsent ledger rows.
type RecoveryResult struct {
	Unsent   int // rows found without sent_at
	Armed    int // timers registered
	Skipped  int // rows already armed
	Rejected int // malformed rows
}

// RecoveryManager re-arms the timer registry from the ledger after a restart.
type RecoveryManager struct {
	schedules schedule.Repository
	timer     Timer
	content   campaign.Content
	logger    *logrus.Entry
}

func NewRecoveryManager(schedules schedule.Repository, timer Timer, content campaign.Content, logger *logrus.Entry) *RecoveryManager {
	return &RecoveryManager{
		schedules: schedules,
		timer:     timer,
		content:   content,
		logger:    logger,
	}
}

// RecoverOnStartup must run once, after the ledger is reachable and before
// enroll signals are processed.
func (m *RecoveryManager) RecoverOnStartup(ctx context.Context) error {
	_, err := m.Recover(ctx)
	return err
}

// Recover arms one timer per unsent ledger row at its persisted fire time.
// Past-due rows fire immediately. Rows already armed are left alone, so
// running it twice arms nothing new. A row with a missing or unreadable fire
// time, or a step outside the campaign, is logged and counted as rejected;
// only a failure to read the ledger at all is returned.
func (m *RecoveryManager) Recover(ctx context.Context) (*RecoveryResult, error) {
	rows, err := m.schedules.ListUnsent(ctx)
	if err != nil {
		m.logger.WithError(err).Error("Failed to list unsent schedules")
		return nil, fmt.Errorf("%w: %w", ErrStoreIO, err)
	}

	total := m.content.StepCount()
	res := &RecoveryResult{Unsent: len(rows)}
	for _, row := range rows {
		logCtx := m.logger.WithFields(logrus.Fields{"subscriber_id": row.SubscriberID, "step": row.Step})

		if row.Malformed {
			logCtx.Warn("Unsent schedule row has an unreadable timestamp; skipping")
			res.Rejected++
			continue
		}
		if !row.ScheduledAt.Valid {
			logCtx.Warn("Unsent schedule row has no fire time; skipping")
			res.Rejected++
			continue
		}
		if row.Step < 0 || row.Step >= total {
			logCtx.WithField("total_steps", total).Warn("Unsent schedule row is outside the campaign; skipping")
			res.Rejected++
			continue
		}

		if m.timer.Arm(row.Key(), row.ScheduledAt.Time) {
			logCtx.WithField("fire_at", row.ScheduledAt.Time).Debug("Re-armed step from ledger")
			res.Armed++
		} else {
			res.Skipped++
		}
	}

	m.logger.WithFields(logrus.Fields{
		"unsent":   res.Unsent,
		"armed":    res.Armed,
		"skipped":  res.Skipped,
		"rejected": res.Rejected,
	}).Info("Schedule recovery finished")
	return res, nil
}
