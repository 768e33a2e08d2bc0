package broadcast

import (
	"context"
	"sync"
)

// Latest is an in-memory Broadcaster that remembers the last published value
// and replays it to every new subscriber. It suits state streams where a
// reader needs the current value first and then every change.
// All methods are safe for concurrent use.
type Latest[T any] struct {
	subscribers map[*subscriber[T]]struct{}
	last        T
	hasLast     bool
	closed      bool
	mu          sync.Mutex
	cleanupWg   sync.WaitGroup
}

// NewLatest creates an empty broadcaster.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{
		subscribers: make(map[*subscriber[T]]struct{}),
	}
}

// Subscribe registers a subscriber. The subscription ends when ctx is
// cancelled or Close is called. Subscribing to a closed broadcaster returns
// an already closed subscriber.
func (b *Latest[T]) Subscribe(ctx context.Context) Subscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber[T]()
	if b.closed {
		_ = sub.Close()
		return sub
	}

	b.subscribers[sub] = struct{}{}
	if b.hasLast {
		sub.send(b.last)
	}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			select {
			case <-ctx.Done():
				b.unsubscribe(sub)
			case <-sub.stop:
			}
		}()
	}

	return sub
}

// Publish records v as the latest value and hands it to every subscriber.
func (b *Latest[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.last = v
	b.hasLast = true

	for sub := range b.subscribers {
		if !sub.send(v) {
			delete(b.subscribers, sub)
		}
	}
}

// Close closes every subscriber. It is safe to call more than once.
func (b *Latest[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	b.mu.Unlock()

	b.cleanupWg.Wait()
	return nil
}

func (b *Latest[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	_ = sub.Close()
}

var _ Broadcaster[int] = (*Latest[int])(nil)
