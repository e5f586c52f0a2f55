package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type EventType string

const (
	EventTypeCallStarted   EventType = "call_started"
	EventTypeCallCompleted EventType = "call_completed"
	EventTypeCallFailed    EventType = "call_failed"
)

// EventMetadata identifies the agent call an event belongs to.
type EventMetadata struct {
	ID             uuid.UUID `json:"id" yaml:"id"`
	ConversationID string    `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	Provider       string    `json:"provider" yaml:"provider"`
	Model          string    `json:"model" yaml:"model"`
	Operation      string    `json:"operation" yaml:"operation"`
	MaxTokens      *int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature    *float64  `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// Event is published around every agent call. All events of one call share
// Metadata.ID.
type Event struct {
	Type     EventType     `json:"type" yaml:"type"`
	Time     time.Time     `json:"time" yaml:"time"`
	Metadata EventMetadata `json:"meta" yaml:"meta"`

	// set on call_completed and call_failed
	DurationMs *int64 `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	// call_completed only
	HistoryLength int `json:"history_length,omitempty" yaml:"history_length,omitempty"`
	// call_failed only
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func NewCallStartedEvent(metadata EventMetadata) *Event {
	return &Event{
		Type:     EventTypeCallStarted,
		Time:     time.Now(),
		Metadata: metadata,
	}
}

func NewCallCompletedEvent(metadata EventMetadata, duration time.Duration, historyLength int) *Event {
	ms := duration.Milliseconds()
	return &Event{
		Type:          EventTypeCallCompleted,
		Time:          time.Now(),
		Metadata:      metadata,
		DurationMs:    &ms,
		HistoryLength: historyLength,
	}
}

func NewCallFailedEvent(metadata EventMetadata, duration time.Duration, err error) *Event {
	ms := duration.Milliseconds()
	ret := &Event{
		Type:       EventTypeCallFailed,
		Time:       time.Now(),
		Metadata:   metadata,
		DurationMs: &ms,
	}
	if err != nil {
		ret.Error = err.Error()
	}
	return ret
}

func NewEventFromJson(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "could not decode event")
	}
	switch e.Type {
	case EventTypeCallStarted, EventTypeCallCompleted, EventTypeCallFailed:
		return &e, nil
	default:
		return nil, errors.Errorf("unknown event type %q", e.Type)
	}
}
