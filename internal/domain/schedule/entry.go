// internal/domain/schedule/entry.go
package schedule

import (
	"database/sql"
	"fmt"
)

// Key identifies one step of one subscriber's campaign.
type Key struct {
	SubscriberID int64
	Step         int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.SubscriberID, k.Step)
}

// State is the lifecycle position of a single step.
type State string

const (
	StateUnscheduled State = "UNSCHEDULED"
	StateScheduled   State = "SCHEDULED"
	StateSent        State = "SENT"
)

// Entry is one row of the schedule ledger.
// Corresponds to the 'schedules' table.
type Entry struct {
	SubscriberID int64
	Step         int
	ScheduledAt  sql.NullTime // Set once a timer has been armed for the step
	SentAt       sql.NullTime // Set once the step was delivered; never cleared
	Malformed    bool         // A stored timestamp could not be decoded
}

func (e *Entry) Key() Key {
	return Key{SubscriberID: e.SubscriberID, Step: e.Step}
}

func (e *Entry) State() State {
	switch {
	case e.SentAt.Valid:
		return StateSent
	case e.ScheduledAt.Valid:
		return StateScheduled
	default:
		return StateUnscheduled
	}
}

// Summary aggregates campaign progress over all subscribers.
type Summary struct {
	Subscribers int
	Active      int // Started but not finished
	Completed   int // Every step delivered
	AverageDay  float64
}
