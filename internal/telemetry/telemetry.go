// Package telemetry provides a JSONL event stream of merge-run transitions.
// Every resolution, fetch, merge and halt is recorded as one JSON line so a
// run can be reconstructed after the fact.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of telemetry event.
const (
	KindRunStart       = "run_start"
	KindRunDone        = "run_done"
	KindResolveFailed  = "resolve_failed"
	KindFetchPlanned   = "fetch_planned"
	KindBaseSelected   = "base_selected"
	KindMergeSkipped   = "merge_skipped"
	KindMergeDone      = "merge_done"
	KindRerereResolved = "rerere_resolved"
	KindMergeHalted    = "merge_halted"
	KindArtifacts      = "artifacts_written"
	KindReleaseCommit  = "release_commit"
)

// Event is a single telemetry record.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	Rev       string    `json:"rev,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes telemetry events to a JSONL file. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	file  *os.File
	enc   *json.Encoder
	runID string
	now   func() time.Time
	mu    sync.Mutex
}

// NewEmitter creates an Emitter appending to the file at path. Events that
// carry no run id are stamped with runID.
func NewEmitter(path, runID string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		file:  f,
		enc:   json.NewEncoder(f),
		runID: runID,
		now:   time.Now,
	}, nil
}

// RunID returns the id stamped on events, or "" for a nil Emitter.
func (e *Emitter) RunID() string {
	if e == nil {
		return ""
	}
	return e.runID
}

// Emit writes a single event. A zero timestamp is replaced with the current
// time. Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}
	if evt.RunID == "" {
		evt.RunID = e.runID
	}
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Branch emits an event of kind about one branch at rev.
func (e *Emitter) Branch(kind, branch, rev string, data any) error {
	return e.Emit(Event{Kind: kind, Branch: branch, Rev: rev, Data: data})
}

// Close closes the underlying file. Calling Close on a nil Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
