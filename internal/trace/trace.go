// Package trace generates per-request correlation ids and records the
// diagnostic steps taken while a request is serviced.
package trace

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-concierge/internal/storage"
)

// Entry is one caller-visible trace element.
type Entry struct {
	Step     string         `json:"step"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// NewTraceID returns a random identifier for one inbound request.
func NewTraceID() string {
	return uuid.NewString()
}

// Recorder writes diagnostic steps to the process log and an optional sink.
// Failures are logged and dropped; recording never affects the response.
type Recorder struct {
	sink   storage.Recorder
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	dropped int
}

func NewRecorder(sink storage.Recorder, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{sink: sink, logger: logger, now: time.Now}
}

// Record appends a step for traceID. A "user_id" metadata key is lifted onto
// the persisted event.
func (r *Recorder) Record(traceID, step string, metadata map[string]any) {
	if r == nil {
		return
	}
	ev := storage.Event{
		Timestamp: r.now().UTC(),
		TraceID:   traceID,
		Step:      step,
		Metadata:  cloneMetadata(metadata),
	}
	if uid, ok := ev.Metadata["user_id"].(string); ok {
		ev.UserID = uid
	}

	meta := "{}"
	if len(ev.Metadata) > 0 {
		if b, err := json.Marshal(ev.Metadata); err == nil {
			meta = string(b)
		} else {
			meta = "<unencodable>"
		}
	}
	r.logger.Printf("[trace %s] %s %s", traceID, step, meta)

	if r.sink == nil {
		return
	}
	if err := r.sink.AppendEvent(ev); err != nil {
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Printf("[trace %s] failed to persist step %s: %v", traceID, step, err)
	}
}

// Dropped reports how many events the sink rejected.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func cloneMetadata(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
