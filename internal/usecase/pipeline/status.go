package pipeline

import "sync"

// Tracker exposes the current run to the diagnostics endpoint. All
// methods are nil-safe so the driver works without one attached.
type Tracker struct {
	mu       sync.RWMutex
	runID    string
	stage    string
	counters map[string]int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{counters: make(map[string]int64)}
}

// Begin resets the tracker for a new run.
func (t *Tracker) Begin(runID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runID = runID
	t.stage = ""
	t.counters = make(map[string]int64)
}

// SetStage records the stage currently executing.
func (t *Tracker) SetStage(stage string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
}

// Set records one counter value.
func (t *Tracker) Set(name string, v int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters[name] = v
}

// StatusSnapshot is a point-in-time view of the run.
type StatusSnapshot struct {
	RunID    string           `json:"run_id"`
	Stage    string           `json:"stage"`
	Counters map[string]int64 `json:"counters"`
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() StatusSnapshot {
	if t == nil {
		return StatusSnapshot{Counters: map[string]int64{}}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	counters := make(map[string]int64, len(t.counters))
	for k, v := range t.counters {
		counters[k] = v
	}
	return StatusSnapshot{RunID: t.runID, Stage: t.stage, Counters: counters}
}
