package refresh

import (
	"sync"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

// State is the refresh run lifecycle. Stopping is entered when a stop is
// requested while Running; the orchestrator observes it at checkpoints and
// finishes in Stopped. Completed/Failed are the other terminal states.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// terminal reports whether a state allows a new run to begin.
func (s State) terminal() bool {
	return s == StateIdle || s == StateStopped || s == StateCompleted || s == StateFailed
}

// Status is a point-in-time snapshot of a run, safe to hand to the UI.
type Status struct {
	State   State
	Phase   string
	Percent int
	// Stats is set once the run reaches a terminal state (always a
	// consistent snapshot, even after an early stop or failure).
	Stats *catalog.RefreshStats
}

// Run is the single process-wide refresh state. There is at most one active
// run; begin() is the call-site guard that rejects a second concurrent start.
type Run struct {
	mu      sync.Mutex
	state   State
	stop    bool
	phase   string
	percent int
	stats   *catalog.RefreshStats
}

func NewRun() *Run {
	return &Run{state: StateIdle}
}

// begin transitions to Running, resetting progress. Returns false when a run
// is already active.
func (r *Run) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.terminal() {
		return false
	}
	r.state = StateRunning
	r.stop = false
	r.phase = ""
	r.percent = 0
	r.stats = nil
	return true
}

// RequestStop asks an active run to stop at its next checkpoint. The call
// returns immediately; an in-flight network request is allowed to finish.
// No-op when no run is active.
func (r *Run) RequestStop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRunning {
		r.state = StateStopping
		r.stop = true
	}
}

func (r *Run) stopRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop
}

func (r *Run) setProgress(phase string, percent int) {
	r.mu.Lock()
	r.phase = phase
	r.percent = percent
	r.mu.Unlock()
}

func (r *Run) finish(state State, stats catalog.RefreshStats) {
	r.mu.Lock()
	r.state = state
	r.stop = false
	r.stats = &stats
	r.mu.Unlock()
}

// Status returns a snapshot of the run.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{State: r.state, Phase: r.phase, Percent: r.percent}
	if r.stats != nil {
		cp := *r.stats
		st.Stats = &cp
	}
	return st
}
