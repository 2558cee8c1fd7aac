package connector

import (
	"sync"
	"time"
)

// Status is the mutex-guarded operational snapshot served by the ops
// listener. The pipeline itself never reads it.
type Status struct {
	mu            sync.Mutex
	lastCycleTime time.Time
	lastOutcome   string
	lastError     string
	cyclesRun     int64
	cyclesFailed  int64
	totalBundles  int64
	totalObjects  int64
}

// Snapshot is a point-in-time copy of the connector state.
type Snapshot struct {
	LastCycleTime time.Time `json:"last_cycle_time"`
	LastOutcome   string    `json:"last_outcome"` // "ok", "noop", "error" or "" before the first cycle
	LastError     string    `json:"last_error,omitempty"`
	CyclesRun     int64     `json:"cycles_run"`
	CyclesFailed  int64     `json:"cycles_failed"`
	TotalBundles  int64     `json:"total_bundles"`
	TotalObjects  int64     `json:"total_objects"`
}

func (s *Status) recordSuccess(at time.Time, r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCycleTime = at
	s.lastError = ""
	s.cyclesRun++
	if r.NoOp() {
		s.lastOutcome = "noop"
		return
	}
	s.lastOutcome = "ok"
	s.totalBundles += int64(r.Bundles)
	s.totalObjects += int64(r.Objects)
}

func (s *Status) recordFailure(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCycleTime = at
	s.lastOutcome = "error"
	s.lastError = err.Error()
	s.cyclesRun++
	s.cyclesFailed++
}

// Snapshot returns a copy safe to serialize concurrently with the loop.
func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		LastCycleTime: s.lastCycleTime,
		LastOutcome:   s.lastOutcome,
		LastError:     s.lastError,
		CyclesRun:     s.cyclesRun,
		CyclesFailed:  s.cyclesFailed,
		TotalBundles:  s.totalBundles,
		TotalObjects:  s.totalObjects,
	}
}
