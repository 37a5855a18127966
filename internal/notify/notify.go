package notify

import (
	"context"
	"time"
)

// EventType classifies a watcher event.
type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventSessionEnded    EventType = "session_ended"
	EventTriggerPhrase   EventType = "trigger_phrase"
	EventRecordingFailed EventType = "recording_failed"
)

// Severity values for events.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Event describes a watcher event for notification.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	StreamID  string         `json:"stream_id,omitempty"`
	Title     string         `json:"title"`
	Subtitle  string         `json:"subtitle,omitempty"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Notifier delivers events. Implementations handle their own failures;
// delivery problems must never take the watcher down.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, event Event) error {
	return nil
}
