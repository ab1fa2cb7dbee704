// Package telemetry implements the per-mandate append-only trace and aggregated
// counters: a single sequenced writer backed by an in-memory ring, so
// consumers read consistent snapshots.
package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Event is one trace line: {ts, event, payload}.
type Event struct {
	Event   string         `json:"event"`
	Ts      int64          `json:"ts"`
	Payload map[string]any `json:"payload,omitempty"`
	Tick    int            `json:"tick,omitempty"`
}

// Counters aggregates typed counts for one mandate's telemetry session.
type Counters struct {
	DocumentsSeen  int64
	VectorStoreIO  int64
	LLMCalls       int64
	TotalTickMs    int64
	SearchActions  int64
	VisitActions   int64
}

// Recorder is the single sequenced writer for one correlation id's trace.
type Recorder struct {
	mu            sync.Mutex
	correlationID string
	ring          []Event
	ringCap       int
	file          *os.File
	writer        *bufio.Writer
	counters      Counters
	now           func() time.Time
}

// NewRecorder opens (or creates) the append-only trace file at path, if path is
// non-empty, and returns a Recorder with a bounded in-memory ring buffer.
func NewRecorder(correlationID, path string, ringCap int) (*Recorder, error) {
	r := &Recorder{correlationID: correlationID, ringCap: ringCap, now: time.Now}

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		r.file = f
		r.writer = bufio.NewWriter(f)
	}
	return r, nil
}

// Record appends event to the ring and, if a trace file is open, to the file.
func (r *Recorder) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.Ts == 0 {
		e.Ts = r.now().Unix()
	}

	r.ring = append(r.ring, e)
	if r.ringCap > 0 && len(r.ring) > r.ringCap {
		r.ring = r.ring[len(r.ring)-r.ringCap:]
	}

	switch e.Event {
	case "document_seen":
		r.counters.DocumentsSeen++
	case "chroma_store", "chroma_retrieve":
		r.counters.VectorStoreIO++
	case "llm_usage":
		r.counters.LLMCalls++
	case "action_succeeded":
		switch e.Payload["action"] {
		case "SEARCH":
			r.counters.SearchActions++
		case "VISIT":
			r.counters.VisitActions++
		}
	}

	if r.writer != nil {
		data, err := json.Marshal(e)
		if err == nil {
			r.writer.Write(data)
			r.writer.WriteByte('\n')
			r.writer.Flush()
		}
	}
}

// Snapshot returns a copy of the in-memory ring; callers never observe a live buffer.
func (r *Recorder) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.ring))
	copy(out, r.ring)
	return out
}

// CountersSnapshot returns a copy of the aggregated counters.
func (r *Recorder) CountersSnapshot() Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters
}

// Close finalizes the trace file, if any, on engine exit.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer != nil {
		r.writer.Flush()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
