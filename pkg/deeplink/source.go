package deeplink

import (
	"context"
	"sync"
)

// ChannelSource is a Source for hosts that receive links programmatically,
// such as a CLI reading URLs from its arguments.
type ChannelSource struct {
	initial string

	mu        sync.Mutex
	listeners map[uint64]func(string)
	next      uint64
}

// NewChannelSource creates a source whose launch URL is initial ("" for none).
func NewChannelSource(initial string) *ChannelSource {
	return &ChannelSource{
		initial:   initial,
		listeners: make(map[uint64]func(string)),
	}
}

// InitialURL implements Source.
func (s *ChannelSource) InitialURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.initial, nil
}

// Listen implements Source.
func (s *ChannelSource) Listen(fn func(string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Deliver hands url to every registered listener.
func (s *ChannelSource) Deliver(url string) {
	s.mu.Lock()
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(url)
	}
}

// Listeners returns the number of active registrations.
func (s *ChannelSource) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
