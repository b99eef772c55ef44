package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"drip_campaign_bot/internal/domain/campaign"
	"drip_campaign_bot/internal/domain/schedule"
	"drip_campaign_bot/internal/domain/subscriber"
	idb "drip_campaign_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

var errNetwork = errors.New("network unreachable")

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type offsetPolicy time.Duration

func (p offsetPolicy) Next(now time.Time) time.Time { return now.Add(time.Duration(p)) }

type stepContent []string

func (c stepContent) StepCount() int { return len(c) }

func (c stepContent) Step(i int) (string, error) {
	if i < 0 || i >= len(c) {
		return "", campaign.ErrStepOutOfRange
	}
	return c[i], nil
}

func threeSteps() stepContent {
	return stepContent{"G1 welcome", "G2 breathing", "G3 epigenetics"}
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeClient struct {
	mu     sync.Mutex
	sent   []sentMessage
	calls  int
	failFn func(call int, chatID int64, text string) error
}

func (c *fakeClient) SendMessage(_ context.Context, chatID int64, text string, _ *telebot.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failFn != nil {
		if err := c.failFn(c.calls, chatID, text); err != nil {
			return err
		}
	}
	c.sent = append(c.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (c *fakeClient) messages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

// fakeTimer never fires on its own; tests fire keys explicitly.
type fakeTimer struct {
	mu    sync.Mutex
	armed map[schedule.Key]time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{armed: make(map[schedule.Key]time.Time)}
}

func (f *fakeTimer) Arm(key schedule.Key, fireAt time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.armed[key]; ok {
		return false
	}
	f.armed[key] = fireAt
	return true
}

func (f *fakeTimer) Cancel(key schedule.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.armed[key]
	delete(f.armed, key)
	return ok
}

func (f *fakeTimer) CancelAllForSubscriber(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for key := range f.armed {
		if key.SubscriberID == id {
			delete(f.armed, key)
			n++
		}
	}
	return n
}

func (f *fakeTimer) CancelAll() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.armed)
	f.armed = make(map[schedule.Key]time.Time)
	return n
}

func (f *fakeTimer) Pending(key schedule.Key) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.armed[key]
	return at, ok
}

func (f *fakeTimer) keys() []schedule.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]schedule.Key, 0, len(f.armed))
	for key := range f.armed {
		keys = append(keys, key)
	}
	return keys
}

// fire removes the handle and runs the callback, like the real engine.
func (f *fakeTimer) fire(t *testing.T, svc *DripService, key schedule.Key) {
	t.Helper()
	require.True(t, f.Cancel(key), "step %s is not armed", key)
	svc.HandleFire(context.Background(), key)
}

type progressRecord struct {
	subscriberID int64
	day          int
	label        string
}

type fakeSink struct {
	mu          sync.Mutex
	enrollments []int64
	progress    []progressRecord
}

func (s *fakeSink) RecordEnrollment(_ context.Context, sub *subscriber.Subscriber) {
	s.mu.Lock()
	s.enrollments = append(s.enrollments, sub.ID)
	s.mu.Unlock()
}

func (s *fakeSink) RecordProgress(_ context.Context, id int64, day int, label string) {
	s.mu.Lock()
	s.progress = append(s.progress, progressRecord{subscriberID: id, day: day, label: label})
	s.mu.Unlock()
}

// countingSchedules counts ledger writes and can inject failures.
type countingSchedules struct {
	schedule.Repository

	mu               sync.Mutex
	markScheduled    int
	failMarkSchedule bool
	failMarkSent     bool
	failClear        bool
}

func (c *countingSchedules) MarkScheduled(ctx context.Context, id int64, step int, fireAt time.Time) error {
	c.mu.Lock()
	c.markScheduled++
	fail := c.failMarkSchedule
	c.mu.Unlock()
	if fail {
		return fmt.Errorf("disk I/O error")
	}
	return c.Repository.MarkScheduled(ctx, id, step, fireAt)
}

func (c *countingSchedules) MarkSent(ctx context.Context, id int64, step int, sentAt time.Time) error {
	if c.failMarkSent {
		return fmt.Errorf("disk I/O error")
	}
	return c.Repository.MarkSent(ctx, id, step, sentAt)
}

func (c *countingSchedules) ClearForSubscriber(ctx context.Context, id int64) error {
	if c.failClear {
		return fmt.Errorf("disk I/O error")
	}
	return c.Repository.ClearForSubscriber(ctx, id)
}

func (c *countingSchedules) scheduledWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.markScheduled
}

type failingSubscribers struct {
	subscriber.Repository
}

func (failingSubscribers) Upsert(context.Context, *subscriber.Subscriber) error {
	return fmt.Errorf("connection refused")
}

type harness struct {
	db          *idb.DB
	subscribers subscriber.Repository
	schedules   *countingSchedules
	timer       *fakeTimer
	client      *fakeClient
	sink        *fakeSink
	clock       *testClock
	content     stepContent
	svc         *DripService
}

const stepInterval = 2 * time.Minute

func newHarness(t *testing.T, content stepContent, opts ...DripOption) *harness {
	t.Helper()

	db, err := idb.Open("sqlite://" + filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	h := &harness{
		db:          db,
		subscribers: idb.NewSubscriberRepository(db),
		schedules:   &countingSchedules{Repository: idb.NewScheduleRepository(db)},
		timer:       newFakeTimer(),
		client:      &fakeClient{},
		sink:        &fakeSink{},
		clock:       newTestClock(),
		content:     content,
	}
	opts = append([]DripOption{WithClock(h.clock.Now), WithAnalytics(h.sink)}, opts...)
	h.svc = NewDripService(h.subscribers, h.schedules, h.timer, content, h.client, offsetPolicy(stepInterval), testLogger(), opts...)
	return h
}

func (h *harness) entries(t *testing.T, id int64) []*schedule.Entry {
	t.Helper()
	entries, err := h.schedules.ListForSubscriber(context.Background(), id)
	require.NoError(t, err)
	return entries
}

// requireMonotonic checks that a sent step implies every earlier step was sent.
func requireMonotonic(t *testing.T, entries []*schedule.Entry) {
	t.Helper()
	sent := make(map[int]bool)
	maxSent := -1
	for _, e := range entries {
		if e.SentAt.Valid {
			sent[e.Step] = true
			if e.Step > maxSent {
				maxSent = e.Step
			}
		}
	}
	for step := 0; step < maxSent; step++ {
		require.True(t, sent[step], "step %d sent but step %d is not", maxSent, step)
	}
}
