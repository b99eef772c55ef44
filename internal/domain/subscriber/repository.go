package subscriber

import (
	"context"
	"fmt"
)

// ErrNotFound is returned when no subscriber has the requested id.
var ErrNotFound = fmt.Errorf("subscriber not found")

// Repository persists subscribers.
type Repository interface {
	// Upsert inserts the subscriber or refreshes its name fields.
	// Source and EnrolledAt are only written on the first insert.
	Upsert(ctx context.Context, s *Subscriber) error
	GetByID(ctx context.Context, id int64) (*Subscriber, error)
}
