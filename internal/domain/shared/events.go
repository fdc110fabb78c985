// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. The engine is read-only over the record set, so the
// event surface is small: it exists to propagate data-refresh signals from
// the import pipeline into the index and caches.
const (
	// EventDataRefreshed is published after a bulk import replaces or extends
	// the record set. Subscribers rebuild the search index and invalidate all
	// aggregation and suggestion caches.
	EventDataRefreshed EventType = "records.data_refreshed"

	// EventIndexRebuilt is published once the search index has been rebuilt
	// against the new record snapshot.
	EventIndexRebuilt EventType = "search.index_rebuilt"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// DataRefreshedEvent is emitted when the underlying record set changed.
type DataRefreshedEvent struct {
	BaseEvent

	// Source identifies what triggered the refresh ("import", "admin", "pubsub").
	Source string `json:"source"`

	// RecordCount is the record count after the refresh, if known (-1 otherwise).
	RecordCount int `json:"record_count"`
}

// Payload implements Event interface.
func (e DataRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"source":       e.Source,
		"record_count": e.RecordCount,
	}
}

// NewDataRefreshedEvent creates a data-refreshed event.
func NewDataRefreshedEvent(source string, recordCount int) DataRefreshedEvent {
	return DataRefreshedEvent{
		BaseEvent:   NewBaseEvent(EventDataRefreshed),
		Source:      source,
		RecordCount: recordCount,
	}
}

// IndexRebuiltEvent is emitted after a successful index rebuild.
type IndexRebuiltEvent struct {
	BaseEvent

	// Version is the data version the index was built against.
	Version int64 `json:"version"`

	// RecordCount is the number of records indexed.
	RecordCount int `json:"record_count"`

	// Duration is how long the rebuild took.
	Duration time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e IndexRebuiltEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"version":      e.Version,
		"record_count": e.RecordCount,
		"duration_ms":  e.Duration.Milliseconds(),
	}
}

// NewIndexRebuiltEvent creates an index-rebuilt event.
func NewIndexRebuiltEvent(version int64, recordCount int, duration time.Duration) IndexRebuiltEvent {
	return IndexRebuiltEvent{
		BaseEvent:   NewBaseEvent(EventIndexRebuilt),
		Version:     version,
		RecordCount: recordCount,
		Duration:    duration,
	}
}

// EventHandler processes a single event. Handlers must be safe for
// concurrent use: the bus may invoke them from multiple goroutines.
type EventHandler interface {
	Handle(event Event) error
}

// EventBus distributes domain events to subscribed handlers.
type EventBus interface {
	// Subscribe registers a handler for one event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for every event type.
	SubscribeAll(handler EventHandler) error

	// Publish delivers an event to all matching handlers.
	Publish(event Event) error

	// Close shuts the bus down and waits for in-flight handlers.
	Close() error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(event Event) error

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(event Event) error {
	return f(event)
}
