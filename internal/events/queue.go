package events

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by Queue.Publish when the buffer has no room.
var ErrQueueFull = errors.New("events: queue full")

// ErrQueueClosed is returned by Queue.Publish after Close.
var ErrQueueClosed = errors.New("events: queue closed")

// Queue hands events to another Publisher from a single goroutine, in the
// order they were enqueued. Publish never blocks on the broker.
type Queue struct {
	next    Publisher
	events  chan Event
	done    chan struct{}
	onError func(Event, error)

	mu     sync.Mutex
	closed bool
}

// NewQueue starts a queue holding up to size events in front of next.
// onError, if set, is called from the queue goroutine for every event next
// fails to publish.
func NewQueue(next Publisher, size int, onError func(Event, error)) *Queue {
	q := &Queue{
		next:    next,
		events:  make(chan Event, size),
		done:    make(chan struct{}),
		onError: onError,
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for e := range q.events {
		if err := q.next.Publish(context.Background(), e); err != nil && q.onError != nil {
			q.onError(e, err)
		}
	}
}

// Publish enqueues events. Events that do not fit are dropped and reported
// with ErrQueueFull.
func (q *Queue) Publish(_ context.Context, events ...Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	for _, e := range events {
		select {
		case q.events <- e:
		default:
			return ErrQueueFull
		}
	}
	return nil
}

// Close stops accepting events, waits for the buffered ones to be published
// and closes next.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()
	<-q.done
	return q.next.Close()
}
