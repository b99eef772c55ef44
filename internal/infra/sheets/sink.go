// Package sheets mirrors subscriber progress to a Google Sheets worksheet.
//
// The worksheet layout is fixed: A user id, B day, C lead name, D last step
// label, E status. Row 1 holds headers. Writes are queued and performed by a
// single background worker so the scheduler never waits on the network.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"drip_campaign_bot/internal/domain/campaign"
	"drip_campaign_bot/internal/domain/subscriber"

	"github.com/codeGROOVE-dev/retry"
	"github.com/sirupsen/logrus"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	queueSize    = 256
	writeTimeout = 30 * time.Second
)

// valuesAPI is the subset of the Sheets values API the sink uses.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	Append(ctx context.Context, spreadsheetID, rng string, row []interface{}) error
	BatchUpdate(ctx context.Context, spreadsheetID string, data []*gsheets.ValueRange) error
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Sink implements campaign.Sink. Failures are logged and dropped.
type Sink struct {
	api           valuesAPI
	spreadsheetID string
	worksheet     string
	totalSteps    int
	logger        *logrus.Entry

	attempts   uint
	retryDelay time.Duration

	mu     sync.Mutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

var _ campaign.Sink = (*Sink)(nil)

func newSink(api valuesAPI, spreadsheetID, worksheet string, totalSteps int, logger *logrus.Entry) *Sink {
	s := &Sink{
		api:           api,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		totalSteps:    totalSteps,
		logger:        logger,
		attempts:      3,
		retryDelay:    2 * time.Second,
		jobs:          make(chan job, queueSize),
		done:          make(chan struct{}),
	}
	go s.worker()
	return s
}

func (s *Sink) RecordEnrollment(_ context.Context, sub *subscriber.Subscriber) {
	id := sub.ID
	lead := sub.LeadName()
	s.enqueue(job{name: "enrollment", run: func(ctx context.Context) error {
		row, err := s.findRow(ctx, id)
		if err != nil {
			return err
		}
		if row > 0 {
			return s.api.BatchUpdate(ctx, s.spreadsheetID, []*gsheets.ValueRange{
				s.cell("E", row, "Active"),
			})
		}
		return s.api.Append(ctx, s.spreadsheetID, s.worksheet+"!A:E",
			[]interface{}{strconv.FormatInt(id, 10), 1, lead, "", "Active"})
	}})
}

func (s *Sink) RecordProgress(_ context.Context, subscriberID int64, day int, label string) {
	s.enqueue(job{name: "progress", run: func(ctx context.Context) error {
		row, err := s.findRow(ctx, subscriberID)
		if err != nil {
			return err
		}
		if row == 0 {
			s.logger.WithField("subscriber_id", subscriberID).Warn("Subscriber row not found in sheet; progress not recorded")
			return nil
		}
		return s.api.BatchUpdate(ctx, s.spreadsheetID, []*gsheets.ValueRange{
			s.cell("B", row, day),
			s.cell("D", row, label),
			s.cell("E", row, s.status(day)),
		})
	}})
}

// Close stops accepting writes and waits for queued ones to finish.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) status(day int) string {
	if day >= s.totalSteps {
		return "Completed"
	}
	return fmt.Sprintf("Active - Day %d", day)
}

func (s *Sink) cell(column string, row int, value interface{}) *gsheets.ValueRange {
	return &gsheets.ValueRange{
		Range:  fmt.Sprintf("%s!%s%d", s.worksheet, column, row),
		Values: [][]interface{}{{value}},
	}
}

// findRow returns the 1-based sheet row holding subscriberID, or 0.
func (s *Sink) findRow(ctx context.Context, subscriberID int64) (int, error) {
	values, err := s.api.Get(ctx, s.spreadsheetID, s.worksheet+"!A:A")
	if err != nil {
		return 0, err
	}
	want := strconv.FormatInt(subscriberID, 10)
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if fmt.Sprint(row[0]) == want {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *Sink) enqueue(j job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.WithField("job", j.name).Warn("Sheets sink closed; dropping write")
		return
	}
	select {
	case s.jobs <- j:
	default:
		s.logger.WithField("job", j.name).Warn("Sheets queue full; dropping write")
	}
}

func (s *Sink) worker() {
	defer close(s.done)
	for j := range s.jobs {
		s.runJob(j)
	}
}

func (s *Sink) runJob(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := retry.Do(
		func() error { return j.run(ctx) },
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.WithField("job", j.name).WithField("attempt", n+1).WithError(err).Debug("Retrying sheets write")
		}),
	)
	if err != nil {
		s.logger.WithField("job", j.name).WithError(err).Error("Sheets write failed")
	}
}
