package outbound

import (
	"context"
	"strconv"
	"time"
)

// EventType represents the type of event.
type EventType string

// Event type constants.
const (
	EventTypeProductTokenInserted EventType = "product_token.inserted"
)

// Event is the interface that all event types implement.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType
	// GetKey returns the identifier used for message attributes, ordering and
	// deduplication. It must be unique per logical event.
	GetKey() string
}

// AttributedEvent is an Event that carries extra string message attributes.
type AttributedEvent interface {
	Event
	Attributes() map[string]string
}

// ProductTokenInsertedEvent is published after a product token row is committed.
type ProductTokenInsertedEvent struct {
	TokenID    int64     `json:"tokenId"`
	ProductID  int64     `json:"productId"`
	TrackerID  int64     `json:"trackerId"`
	Auditor    string    `json:"auditor"`
	Amount     string    `json:"amount"`
	Available  string    `json:"available"`
	UnitAmount string    `json:"unitAmount"`
	Name       string    `json:"name"`
	Unit       string    `json:"unit"`
	Hash       string    `json:"hash"`
	InsertedAt time.Time `json:"insertedAt"`
}

// EventType implements Event.
func (e ProductTokenInsertedEvent) EventType() EventType {
	return EventTypeProductTokenInserted
}

// GetKey implements Event. Hashes repeat across rows, token ids do not.
func (e ProductTokenInsertedEvent) GetKey() string {
	return strconv.FormatInt(e.TokenID, 10)
}

// Attributes implements AttributedEvent.
func (e ProductTokenInsertedEvent) Attributes() map[string]string {
	return map[string]string{"hash": e.Hash}
}

// EventSink defines the interface for publishing events.
type EventSink interface {
	// Publish sends an event to the sink.
	Publish(ctx context.Context, event Event) error

	// Close releases resources held by the sink.
	Close() error
}
