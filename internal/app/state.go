package app

import "sync/atomic"

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRunning    Phase = "running"
	PhaseLoading    Phase = "loading"
	PhaseExtracting Phase = "extracting"
	PhaseVerifying  Phase = "verifying"
	PhaseSaving     Phase = "saving"
	PhaseCancelling Phase = "cancelling"
)

// RunState is the live state of one batch. All fields are atomics so hosts
// may take snapshots from any goroutine while the batch runs.
type RunState struct {
	units     atomic.Int64
	unit      atomic.Int64
	sheet     atomic.Int64
	remaining atomic.Int64
	cancelled atomic.Bool

	// consumed marks a cancellation that already stopped a batch
	consumed atomic.Bool
	phase    atomic.Value
}

type StateSnapshot struct {
	Units     int   `json:"units"`
	Unit      int   `json:"unit"`
	Sheet     int   `json:"sheet"`
	Remaining int   `json:"remaining"`
	Cancelled bool  `json:"cancelled"`
	Phase     Phase `json:"phase"`
}

func NewRunState() *RunState {
	s := &RunState{}
	s.phase.Store(PhaseIdle)
	return s
}

func (s *RunState) start(units int) {
	if s.consumed.Swap(false) {
		s.cancelled.Store(false)
	}
	s.units.Store(int64(units))
	s.unit.Store(0)
	s.sheet.Store(0)
	s.remaining.Store(0)
	s.phase.Store(PhaseRunning)
}

func (s *RunState) Cancelled() bool    { return s.cancelled.Load() }
func (s *RunState) setPhase(p Phase)   { s.phase.Store(p) }
func (s *RunState) setSheet(i int)     { s.sheet.Store(int64(i)) }
func (s *RunState) setRemaining(n int) { s.remaining.Store(int64(n)) }

// Cancel stops the running batch, or the next one when none is running.
func (s *RunState) Cancel() {
	s.consumed.Store(false)
	s.cancelled.Store(true)
}

// stop ends a batch. A cancellation that stopped it stays visible in
// snapshots but does not carry over to the next batch.
func (s *RunState) stop() {
	s.phase.Store(PhaseIdle)
	s.consumed.Store(s.cancelled.Load())
}

func (s *RunState) setUnit(i int) {
	s.unit.Store(int64(i))
	s.sheet.Store(0)
}

func (s *RunState) Snapshot() StateSnapshot {
	phase := s.phase.Load().(Phase)
	cancelled := s.cancelled.Load()
	if cancelled && phase != PhaseIdle {
		phase = PhaseCancelling
	}
	return StateSnapshot{
		Units:     int(s.units.Load()),
		Unit:      int(s.unit.Load()),
		Sheet:     int(s.sheet.Load()),
		Remaining: int(s.remaining.Load()),
		Cancelled: cancelled,
		Phase:     phase,
	}
}
