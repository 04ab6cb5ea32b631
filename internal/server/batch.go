package server

import (
	"sync"
	"time"

	"link_checker/internal/app"
	"link_checker/internal/models"
)

type Event struct {
	Seq    int       `json:"seq"`
	Type   string    `json:"type"`
	Unit   string    `json:"unit,omitempty"`
	Output string    `json:"output,omitempty"`
	Count  int       `json:"count"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

type PendingDecision struct {
	Unit  string    `json:"unit"`
	Path  string    `json:"path"`
	Phase app.Phase `json:"phase"`
	Error string    `json:"error"`
}

type BatchView struct {
	ID      string            `json:"id"`
	Units   []string          `json:"units"`
	Created time.Time         `json:"created"`
	Done    bool              `json:"done"`
	Error   string            `json:"error,omitempty"`
	State   app.StateSnapshot `json:"state"`
	Pending *PendingDecision  `json:"pending,omitempty"`
}

// batch is the host of one handler run: it records every signal and keeps
// the retry request the operator still has to answer.
type batch struct {
	id      string
	units   []string
	created time.Time
	handler *app.Handler

	mu      sync.Mutex
	events  []Event
	pending *app.RetryRequest
	done    bool
	err     string
}

func (b *batch) add(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e.Seq = len(b.events)
	e.Time = time.Now()
	b.events = append(b.events, e)
}

func (b *batch) eventsSince(seq int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq < 0 {
		seq = 0
	}
	if seq >= len(b.events) {
		return []Event{}
	}
	return append([]Event{}, b.events[seq:]...)
}

func (b *batch) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	if err != nil {
		b.err = err.Error()
	}
}

// resolve answers the pending retry request, if any.
func (b *batch) resolve(d models.Decision) bool {
	b.mu.Lock()
	req := b.pending
	b.pending = nil
	b.mu.Unlock()
	if req == nil || req.Resolved() {
		return false
	}
	return req.Resolve(d)
}

func (b *batch) view() BatchView {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := BatchView{
		ID:      b.id,
		Units:   b.units,
		Created: b.created,
		Done:    b.done,
		Error:   b.err,
		State:   b.handler.State(),
	}
	if b.pending != nil && b.pending.Resolved() {
		b.pending = nil
	}
	if b.pending != nil {
		v.Pending = &PendingDecision{
			Unit:  b.pending.Unit,
			Path:  b.pending.Path,
			Phase: b.pending.Phase,
			Error: b.pending.Err.Error(),
		}
	}
	return v
}

func (b *batch) BatchStarted(units int) { b.add(Event{Type: "batch_started", Count: units}) }

func (b *batch) UnitStarted(unit string, sheets int) {
	b.add(Event{Type: "unit_started", Unit: unit, Count: sheets})
}

func (b *batch) SheetStarted(items int)   { b.add(Event{Type: "sheet_started", Count: items}) }
func (b *batch) Progress(remaining int)   { b.add(Event{Type: "progress", Count: remaining}) }
func (b *batch) LoadStarted(unit string)  { b.add(Event{Type: "load_started", Unit: unit}) }
func (b *batch) LoadFinished(unit string) { b.add(Event{Type: "load_finished", Unit: unit}) }

func (b *batch) SaveStarted(unit, output string) {
	b.add(Event{Type: "save_started", Unit: unit, Output: output})
}

func (b *batch) SaveFinished(unit, output string) {
	b.add(Event{Type: "save_finished", Unit: unit, Output: output})
}

func (b *batch) LoadFailed(req *app.RetryRequest) {
	b.setPending(req)
	b.add(Event{Type: "load_failed", Unit: req.Unit, Error: req.Err.Error()})
}

func (b *batch) SaveFailed(req *app.RetryRequest) {
	b.setPending(req)
	b.add(Event{Type: "save_failed", Unit: req.Unit, Output: req.Path, Error: req.Err.Error()})
}

func (b *batch) BatchStopped() { b.add(Event{Type: "batch_stopped"}) }

func (b *batch) setPending(req *app.RetryRequest) {
	b.mu.Lock()
	b.pending = req
	b.mu.Unlock()
}
