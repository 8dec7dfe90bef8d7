// Package memory provides in-memory adapters for tests and for local runs
// without AWS credentials (EVENT_SINK=memory).
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/archon-research/emissions-api/internal/ports/outbound"
)

// Compile-time check that EventSink implements outbound.EventSink
var _ outbound.EventSink = (*EventSink)(nil)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event sink is closed")

// EventSink records published events for later inspection. Safe for
// concurrent use.
type EventSink struct {
	mu         sync.RWMutex
	events     []outbound.Event
	closed     bool
	publishErr error
	onPublish  func(outbound.Event)
}

// NewEventSink creates an empty in-memory event sink.
func NewEventSink() *EventSink {
	return &EventSink{events: make([]outbound.Event, 0)}
}

// Publish stores the event, or returns the error set with FailWith.
func (s *EventSink) Publish(ctx context.Context, event outbound.Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.publishErr != nil {
		err := s.publishErr
		s.mu.Unlock()
		return err
	}
	s.events = append(s.events, event)
	cb := s.onPublish
	s.mu.Unlock()

	if cb != nil {
		cb(event)
	}
	return nil
}

// Close marks the sink as closed.
func (s *EventSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FailWith makes every following Publish return err. Pass nil to recover.
func (s *EventSink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishErr = err
}

// SetOnPublish registers a callback invoked after each stored event.
func (s *EventSink) SetOnPublish(fn func(outbound.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPublish = fn
}

// GetEvents returns a copy of all published events.
func (s *EventSink) GetEvents() []outbound.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]outbound.Event, len(s.events))
	copy(result, s.events)
	return result
}

// GetEventsByType returns the published events of one type.
func (s *EventSink) GetEventsByType(eventType outbound.EventType) []outbound.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]outbound.Event, 0)
	for _, e := range s.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// GetProductTokenEvents returns the published product token insert events.
func (s *EventSink) GetProductTokenEvents() []outbound.ProductTokenInsertedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]outbound.ProductTokenInsertedEvent, 0)
	for _, e := range s.events {
		if pe, ok := e.(outbound.ProductTokenInsertedEvent); ok {
			result = append(result, pe)
		}
	}
	return result
}

// Clear removes all stored events.
func (s *EventSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]outbound.Event, 0)
}
