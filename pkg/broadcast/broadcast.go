package broadcast

import (
	"context"
	"sync"
)

// Subscriber receives values from a Broadcaster.
type Subscriber[T any] interface {
	// Receive returns the channel values arrive on. It is closed when the
	// subscriber or the broadcaster is closed.
	Receive() <-chan T

	// Close releases the subscription. It is idempotent.
	Close() error
}

// Broadcaster fans a stream of values out to subscribers.
type Broadcaster[T any] interface {
	Subscribe(ctx context.Context) Subscriber[T]
	Publish(v T)
	Close() error
}

// subscriber holds at most one undelivered value. A newer value replaces a
// pending one, so slow readers skip intermediate values instead of blocking
// the publisher.
type subscriber[T any] struct {
	ch     chan T
	stop   chan struct{}
	closed bool
	mu     sync.Mutex
}

func newSubscriber[T any]() *subscriber[T] {
	return &subscriber[T]{
		ch:   make(chan T, 1),
		stop: make(chan struct{}),
	}
}

func (s *subscriber[T]) Receive() <-chan T {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		close(s.stop)
		s.closed = true
	}
	return nil
}

func (s *subscriber[T]) send(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	// Drain a stale pending value; the reader only cares about the latest.
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
	return true
}
