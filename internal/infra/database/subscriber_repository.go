package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"drip_campaign_bot/internal/domain/subscriber"
)

type SubscriberRepository struct {
	db *DB
}

func NewSubscriberRepository(db *DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// Upsert inserts a subscriber or refreshes its name fields. source and
// enrolled_at keep the values of the first insert.
func (r *SubscriberRepository) Upsert(ctx context.Context, s *subscriber.Subscriber) error {
	query := `INSERT INTO subscribers (id, username, first_name, last_name, source, enrolled_at)
               VALUES (?, ?, ?, ?, ?, ?)
               ON CONFLICT (id) DO UPDATE
               SET username = excluded.username,
                   first_name = excluded.first_name,
                   last_name = excluded.last_name`
	_, err := r.db.ExecContext(ctx, r.db.rebind(query),
		s.ID, s.Username, s.FirstName, s.LastName, s.Source, s.EnrolledAt.UTC())
	if err != nil {
		return fmt.Errorf("error upserting subscriber %d: %w", s.ID, err)
	}
	return nil
}

func (r *SubscriberRepository) GetByID(ctx context.Context, id int64) (*subscriber.Subscriber, error) {
	query := `SELECT id, username, first_name, last_name, source, enrolled_at
               FROM subscribers WHERE id = ?`
	s := &subscriber.Subscriber{}
	err := r.db.QueryRowContext(ctx, r.db.rebind(query), id).Scan(
		&s.ID, &s.Username, &s.FirstName, &s.LastName, &s.Source, &s.EnrolledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, subscriber.ErrNotFound
		}
		return nil, fmt.Errorf("error getting subscriber by ID: %w", err)
	}
	return s, nil
}
