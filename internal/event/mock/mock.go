// Package mock provides a test double for the event.Sink interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxbridge/voxbridge/internal/event"
)

// Sink records every event sent through it. Safe for concurrent use.
type Sink struct {
	// SendErr, when non-nil, is returned by every Send call.
	SendErr error

	mu     sync.Mutex
	events []event.Event
}

// Send records e and returns SendErr.
func (s *Sink) Send(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return s.SendErr
	}
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of all recorded events.
func (s *Sink) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsOf returns all recorded events of the given type.
func (s *Sink) EventsOf(t event.Type) []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recently recorded event, or nil.
func (s *Sink) Last() event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

// Reset clears recorded events.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
