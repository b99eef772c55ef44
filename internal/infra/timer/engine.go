// Package timer keeps the in-memory registry of pending step deliveries.
//
// One handle exists per schedule.Key. A single goroutine sleeps until the
// earliest deadline; due handles are removed from the registry before their
// callback runs, so a callback may arm the next step of the same subscriber
// right away. Callbacks for different keys run concurrently.
package timer

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"drip_campaign_bot/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

// FireFunc handles a due step. It receives the typed key, never shared state.
type FireFunc func(ctx context.Context, key schedule.Key)

type handle struct {
	key    schedule.Key
	fireAt time.Time
	index  int // position in the heap, -1 once removed
}

type Engine struct {
	mu      sync.Mutex
	handles map[schedule.Key]*handle
	queue   handleQueue
	wake    chan struct{}

	fire   FireFunc
	now    func() time.Time
	logger *logrus.Entry

	cancel   context.CancelFunc
	loopDone chan struct{}
	inflight sync.WaitGroup
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, used to decide which handles are due.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(fire FireFunc, logger *logrus.Entry, opts ...Option) *Engine {
	e := &Engine{
		handles: make(map[schedule.Key]*handle),
		wake:    make(chan struct{}, 1),
		fire:    fire,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetFireFunc sets the callback. It must be called before Start.
func (e *Engine) SetFireFunc(fire FireFunc) {
	e.mu.Lock()
	e.fire = fire
	e.mu.Unlock()
}

// Arm registers a handle for key firing at fireAt. It returns false and does
// nothing when key already has a live handle. A fireAt in the past fires as
// soon as the engine runs.
func (e *Engine) Arm(key schedule.Key, fireAt time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.handles[key]; exists {
		return false
	}
	h := &handle{key: key, fireAt: fireAt}
	e.handles[key] = h
	heap.Push(&e.queue, h)
	e.signal()
	return true
}

// Cancel removes the handle for key without firing it.
func (e *Engine) Cancel(key schedule.Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.handles[key]
	if !ok {
		return false
	}
	e.remove(h)
	e.signal()
	return true
}

// CancelAllForSubscriber removes every handle of one subscriber.
func (e *Engine) CancelAllForSubscriber(subscriberID int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for key, h := range e.handles {
		if key.SubscriberID == subscriberID {
			e.remove(h)
			n++
		}
	}
	if n > 0 {
		e.signal()
	}
	return n
}

// CancelAll empties the registry.
func (e *Engine) CancelAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.handles)
	e.handles = make(map[schedule.Key]*handle)
	e.queue = nil
	e.signal()
	return n
}

// Pending returns the fire time of the handle for key, if any.
func (e *Engine) Pending(key schedule.Key) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.handles[key]
	if !ok {
		return time.Time{}, false
	}
	return h.fireAt, true
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

// Start launches the waiter goroutine. Callbacks receive a context that is
// cancelled by Stop.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.loopDone = make(chan struct{})
	e.mu.Unlock()

	go e.loop(ctx)
	e.logger.Info("Timer engine started")
}

// Stop halts the waiter and waits for running callbacks to return.
// Handles still registered are dropped; the ledger keeps them for recovery.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.loopDone
	e.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done
	e.inflight.Wait()
	e.logger.WithField("pending", e.Len()).Info("Timer engine stopped")
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.loopDone)

	t := time.NewTimer(time.Hour)
	defer t.Stop()

	for {
		due, wait := e.popDue()
		for _, h := range due {
			e.dispatch(ctx, h.key)
		}

		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		if wait >= 0 {
			t.Reset(wait)
		}

		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		case <-t.C:
		}
	}
}

// popDue removes and returns every handle whose fire time has passed, and the
// delay until the next one (-1 when the registry is empty).
func (e *Engine) popDue() ([]*handle, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var due []*handle
	for e.queue.Len() > 0 {
		next := e.queue[0]
		if next.fireAt.After(now) {
			return due, next.fireAt.Sub(now)
		}
		e.remove(next)
		due = append(due, next)
	}
	return due, -1
}

func (e *Engine) dispatch(ctx context.Context, key schedule.Key) {
	e.mu.Lock()
	fire := e.fire
	e.mu.Unlock()
	if fire == nil {
		e.logger.WithField("key", key.String()).Warn("Timer fired without a callback; dropping")
		return
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.WithField("key", key.String()).Errorf("Fire callback panicked: %v", r)
			}
		}()
		fire(ctx, key)
	}()
}

// remove must be called with e.mu held.
func (e *Engine) remove(h *handle) {
	delete(e.handles, h.key)
	if h.index >= 0 {
		heap.Remove(&e.queue, h.index)
	}
}

// signal must be called with e.mu held.
func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// handleQueue is a min-heap ordered by fire time.
type handleQueue []*handle

func (q handleQueue) Len() int { return len(q) }

func (q handleQueue) Less(i, j int) bool { return q[i].fireAt.Before(q[j].fireAt) }

func (q handleQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *handleQueue) Push(x any) {
	h := x.(*handle)
	h.index = len(*q)
	*q = append(*q, h)
}

func (q *handleQueue) Pop() any {
	old := *q
	n := len(old)
	h := old[n-1]
	old[n-1] = nil
	h.index = -1
	*q = old[:n-1]
	return h
}
