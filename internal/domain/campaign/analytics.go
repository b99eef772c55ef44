package campaign

import (
	"context"

	"drip_campaign_bot/internal/domain/subscriber"
)

// Sink mirrors campaign state to an external reporting system.
// Implementations must not block and must never return failures to the caller.
type Sink interface {
	RecordEnrollment(ctx context.Context, s *subscriber.Subscriber)
	// RecordProgress reports that the 1-based day was delivered.
	RecordProgress(ctx context.Context, subscriberID int64, day int, label string)
}

// NopSink discards everything. Used when no reporting backend is configured.
type NopSink struct{}

func (NopSink) RecordEnrollment(context.Context, *subscriber.Subscriber) {}
func (NopSink) RecordProgress(context.Context, int64, int, string) {}
