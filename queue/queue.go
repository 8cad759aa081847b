// Package queue implements a FIFO that hands its values to handlers while
// keeping a minimum interval between two dispatches.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/gruntwork-io/go-commons/errors"
	"k8s.io/utils/clock"
)

// InvalidConfiguration is returned when a queue is created with a
// non-positive interval.
type InvalidConfiguration struct {
	Interval time.Duration
}

func (e InvalidConfiguration) Error() string {
	return fmt.Sprintf("queue interval must be positive, got %v", e.Interval)
}

// Option configures a Queue.
type Option func(*options)

type options struct {
	clock clock.WithDelayedExecution
}

// WithClock replaces the clock used to schedule delayed dispatches.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(o *options) {
		o.clock = c
	}
}

// Queue dispatches queued values in FIFO order. The first value after an idle
// period is dispatched synchronously, every following value waits until the
// interval has elapsed since the previous dispatch.
type Queue[T any] struct {
	interval time.Duration
	clock    clock.WithDelayedExecution

	mu       sync.Mutex
	handlers []func(T)
	values   []T
	timer    clock.Timer
	busy     bool
	stopped  bool
}

// New creates a queue with the given minimum interval between dispatches.
func New[T any](interval time.Duration, opts ...Option) (*Queue[T], error) {
	if interval <= 0 {
		return nil, errors.WithStackTrace(InvalidConfiguration{Interval: interval})
	}

	o := options{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	return &Queue[T]{
		interval: interval,
		clock:    o.clock,
	}, nil
}

// AddHandler registers a callback that is invoked for every dispatched value.
// Handlers run in registration order.
func (q *Queue[T]) AddHandler(fn func(T)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, fn)
}

// QueueValue appends a value. If the queue is idle the value is dispatched
// before QueueValue returns.
func (q *Queue[T]) QueueValue(v T) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.values = append(q.values, v)
	if q.busy {
		q.mu.Unlock()
		return
	}
	q.busy = true
	q.mu.Unlock()

	q.fire()
}

// Len returns the number of values waiting for dispatch.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.values)
}

// Stop cancels the pending dispatch and drops all queued values. A stopped
// queue ignores new values.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.values = nil
	q.busy = false
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *Queue[T]) fire() {
	q.mu.Lock()
	if q.stopped || len(q.values) == 0 {
		q.busy = false
		q.timer = nil
		q.mu.Unlock()
		return
	}

	var zero T
	v := q.values[0]
	q.values[0] = zero
	q.values = q.values[1:]
	handlers := make([]func(T), len(q.handlers))
	copy(handlers, q.handlers)
	q.mu.Unlock()

	for _, h := range handlers {
		h(v)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	// fake clocks run AfterFunc callbacks while holding their own lock
	q.timer = q.clock.AfterFunc(q.interval, func() { go q.fire() })
}
