package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"drip_campaign_bot/internal/domain/schedule"
)

type ScheduleRepository struct {
	db *DB
}

func NewScheduleRepository(db *DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) NextUnsentStep(ctx context.Context, subscriberID int64) (int, error) {
	query := `SELECT COALESCE(MAX(step_index) + 1, 0)
               FROM schedules
               WHERE subscriber_id = ? AND sent_at IS NOT NULL`
	var next int
	if err := r.db.QueryRowContext(ctx, r.db.rebind(query), subscriberID).Scan(&next); err != nil {
		return 0, fmt.Errorf("error getting next unsent step for subscriber %d: %w", subscriberID, err)
	}
	return next, nil
}

func (r *ScheduleRepository) MarkScheduled(ctx context.Context, subscriberID int64, step int, fireAt time.Time) error {
	query := `INSERT INTO schedules (subscriber_id, step_index, scheduled_at)
               VALUES (?, ?, ?)
               ON CONFLICT (subscriber_id, step_index) DO UPDATE
               SET scheduled_at = excluded.scheduled_at`
	if _, err := r.db.ExecContext(ctx, r.db.rebind(query), subscriberID, step, fireAt.UTC()); err != nil {
		return fmt.Errorf("error marking step %d scheduled for subscriber %d: %w", step, subscriberID, err)
	}
	return nil
}

// MarkSent records delivery. An existing sent_at is never replaced.
func (r *ScheduleRepository) MarkSent(ctx context.Context, subscriberID int64, step int, sentAt time.Time) error {
	query := `INSERT INTO schedules (subscriber_id, step_index, sent_at)
               VALUES (?, ?, ?)
               ON CONFLICT (subscriber_id, step_index) DO UPDATE
               SET sent_at = COALESCE(schedules.sent_at, excluded.sent_at)`
	if _, err := r.db.ExecContext(ctx, r.db.rebind(query), subscriberID, step, sentAt.UTC()); err != nil {
		return fmt.Errorf("error marking step %d sent for subscriber %d: %w", step, subscriberID, err)
	}
	return nil
}

// storedTimeLayouts are the text forms a timestamp column may come back in.
// SQLite hands back text when a stored value does not match its own layout.
var storedTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// decodeTime turns a raw timestamp column into a NullTime. NULL is not an
// error; a value no layout accepts is.
func decodeTime(raw any) (sql.NullTime, error) {
	switch v := raw.(type) {
	case nil:
		return sql.NullTime{}, nil
	case time.Time:
		return sql.NullTime{Time: v, Valid: true}, nil
	case []byte:
		return parseStoredTime(string(v))
	case string:
		return parseStoredTime(v)
	default:
		return sql.NullTime{}, fmt.Errorf("unsupported timestamp type %T", raw)
	}
}

func parseStoredTime(s string) (sql.NullTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return sql.NullTime{Time: t, Valid: true}, nil
		}
	}
	return sql.NullTime{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// scanEntries reads ledger rows. A timestamp that cannot be decoded marks
// only its own entry as Malformed, leaving that column invalid; scan and
// iteration failures abort the whole read.
func scanEntries(rows *sql.Rows) ([]*schedule.Entry, error) {
	entries := make([]*schedule.Entry, 0)
	for rows.Next() {
		var (
			e                   schedule.Entry
			scheduledAt, sentAt any
		)
		if err := rows.Scan(&e.SubscriberID, &e.Step, &scheduledAt, &sentAt); err != nil {
			return nil, fmt.Errorf("error scanning schedule row: %w", err)
		}

		var err error
		if e.ScheduledAt, err = decodeTime(scheduledAt); err != nil {
			e.Malformed = true
		}
		if e.SentAt, err = decodeTime(sentAt); err != nil {
			e.Malformed = true
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}
	return entries, nil
}

func (r *ScheduleRepository) ListUnsent(ctx context.Context) ([]*schedule.Entry, error) {
	query := `SELECT subscriber_id, step_index, scheduled_at, sent_at
               FROM schedules
               WHERE sent_at IS NULL
               ORDER BY subscriber_id, step_index`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying unsent schedules: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *ScheduleRepository) ListForSubscriber(ctx context.Context, subscriberID int64) ([]*schedule.Entry, error) {
	query := `SELECT subscriber_id, step_index, scheduled_at, sent_at
               FROM schedules
               WHERE subscriber_id = ?
               ORDER BY step_index`
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), subscriberID)
	if err != nil {
		return nil, fmt.Errorf("error querying schedules for subscriber %d: %w", subscriberID, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *ScheduleRepository) ClearAll(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules`)
	if err != nil {
		return 0, fmt.Errorf("error clearing schedules: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting cleared schedules: %w", err)
	}
	return int(n), nil
}

func (r *ScheduleRepository) ClearForSubscriber(ctx context.Context, subscriberID int64) error {
	query := `DELETE FROM schedules WHERE subscriber_id = ?`
	if _, err := r.db.ExecContext(ctx, r.db.rebind(query), subscriberID); err != nil {
		return fmt.Errorf("error clearing schedules for subscriber %d: %w", subscriberID, err)
	}
	return nil
}

// Summarize counts subscribers by progress. A subscriber's day is the number
// of the highest delivered step (1-based), 0 when nothing was delivered.
func (r *ScheduleRepository) Summarize(ctx context.Context, stepCount int) (*schedule.Summary, error) {
	query := `SELECT s.id, MAX(CASE WHEN e.sent_at IS NOT NULL THEN e.step_index END)
               FROM subscribers s
               LEFT JOIN schedules e ON e.subscriber_id = s.id
               GROUP BY s.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying campaign progress: %w", err)
	}
	defer rows.Close()

	summary := &schedule.Summary{}
	daysSum := 0
	for rows.Next() {
		var id int64
		var lastSent sql.NullInt64
		if err := rows.Scan(&id, &lastSent); err != nil {
			return nil, fmt.Errorf("error scanning campaign progress row: %w", err)
		}
		day := 0
		if lastSent.Valid {
			day = int(lastSent.Int64) + 1
		}
		summary.Subscribers++
		daysSum += day
		if stepCount > 0 && day >= stepCount {
			summary.Completed++
		} else {
			summary.Active++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaign progress rows: %w", err)
	}

	if summary.Subscribers > 0 {
		summary.AverageDay = float64(daysSum) / float64(summary.Subscribers)
	}
	return summary, nil
}
