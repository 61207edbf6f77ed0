package storage

import "time"

// Event is a single diagnostic trace step recorded while servicing a request.
// Events are expected to be appended in chronological order.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	TraceID   string         `json:"trace_id"`
	UserID    string         `json:"user_id,omitempty"`
	Step      string         `json:"step"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Recorder abstracts persistence of trace events.
// LoadEvents should return events in chronological order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendEvent(event Event) error
	LoadEvents() ([]Event, error)
	Close() error
}
