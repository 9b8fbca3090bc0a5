// Package session owns the client's top-level authentication state: the
// forced-logout broadcast signal and the controller that moves between the
// signed-out and signed-in states.
package session

import "sync"

// Signal is the process-wide forced-logout broadcast. It is created once at
// application start and closed on shutdown; subscribers receive an empty
// event whenever the gateway detects an authorization failure.
type Signal struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan struct{}
	closed bool
}

// NewSignal creates an open signal with no subscribers.
func NewSignal() *Signal {
	return &Signal{subs: make(map[int]chan struct{})}
}

// Subscribe creates a new subscription channel. bufSize controls the
// channel buffer; events are dropped for subscribers whose buffer is full.
func (s *Signal) Subscribe(bufSize int) (int, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, bufSize)
	if s.closed {
		close(ch)
		return id, ch
	}
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Signal) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// Publish broadcasts a forced-logout event to all subscribers without
// blocking. Publishing on a closed signal is a no-op.
func (s *Signal) Publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
			// Slow subscriber, drop event.
		}
	}
}

// Close shuts the signal down, closing all subscriber channels. Further
// Publish calls are no-ops.
func (s *Signal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
