// internal/domain/schedule/repository.go
package schedule

import (
	"context"
	"time"
)

// Repository is the durable schedule ledger. Every method is synchronous and
// reports storage failures to the caller without retrying.
type Repository interface {
	// NextUnsentStep returns 1 + the highest sent step, or 0 if nothing was sent.
	NextUnsentStep(ctx context.Context, subscriberID int64) (int, error)
	// MarkScheduled upserts the entry and sets scheduled_at, leaving sent_at untouched.
	MarkScheduled(ctx context.Context, subscriberID int64, step int, fireAt time.Time) error
	// MarkSent upserts the entry and sets sent_at, creating it directly as sent if absent.
	MarkSent(ctx context.Context, subscriberID int64, step int, sentAt time.Time) error
	// ListUnsent returns every entry without sent_at, across all subscribers.
	ListUnsent(ctx context.Context) ([]*Entry, error)
	ListForSubscriber(ctx context.Context, subscriberID int64) ([]*Entry, error)
	// ClearAll removes every entry and returns how many were removed.
	ClearAll(ctx context.Context) (int, error)
	ClearForSubscriber(ctx context.Context, subscriberID int64) error

	Summarize(ctx context.Context, stepCount int) (*Summary, error)
}
