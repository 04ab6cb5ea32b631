package app

import (
	"context"
	"sync/atomic"

	"link_checker/internal/models"
)

// Observer is the host side of a batch. The handler delivers every call from
// a single goroutine of its own, in emission order, so an observer never runs
// concurrently with itself but must not assume it runs on the caller's goroutine.
// LoadFailed and SaveFailed hand over a RetryRequest the host must resolve,
// otherwise the unit waits until the batch context ends.
type Observer interface {
	BatchStarted(units int)
	UnitStarted(unit string, sheets int)
	SheetStarted(items int)
	Progress(remaining int)
	LoadStarted(unit string)
	LoadFinished(unit string)
	SaveStarted(unit, output string)
	SaveFinished(unit, output string)
	LoadFailed(req *RetryRequest)
	SaveFailed(req *RetryRequest)
	BatchStopped()
}

// NopObserver ignores every signal and abandons failed loads and saves.
type NopObserver struct{}

func (NopObserver) BatchStarted(int)             {}
func (NopObserver) UnitStarted(string, int)      {}
func (NopObserver) SheetStarted(int)             {}
func (NopObserver) Progress(int)                 {}
func (NopObserver) LoadStarted(string)           {}
func (NopObserver) LoadFinished(string)          {}
func (NopObserver) SaveStarted(string, string)   {}
func (NopObserver) SaveFinished(string, string)  {}
func (NopObserver) LoadFailed(req *RetryRequest) { req.Resolve(models.DecisionAbandon) }
func (NopObserver) SaveFailed(req *RetryRequest) { req.Resolve(models.DecisionAbandon) }
func (NopObserver) BatchStopped()                {}

// RetryRequest carries one failed load or save to the host. It is resolved
// at most once; the handler blocks in Wait until then.
type RetryRequest struct {
	Unit  string
	Path  string
	Phase Phase
	Err   error

	reply    chan models.Decision
	resolved atomic.Bool
}

func NewRetryRequest(unit, path string, phase Phase, err error) *RetryRequest {
	return &RetryRequest{
		Unit:  unit,
		Path:  path,
		Phase: phase,
		Err:   err,
		reply: make(chan models.Decision, 1),
	}
}

// Resolve records the host's decision. Only the first retry or abandon counts.
func (r *RetryRequest) Resolve(d models.Decision) bool {
	if d != models.DecisionRetry && d != models.DecisionAbandon {
		return false
	}
	if !r.resolved.CompareAndSwap(false, true) {
		return false
	}
	r.reply <- d
	return true
}

func (r *RetryRequest) Resolved() bool {
	return r.resolved.Load()
}

// Wait blocks until the request is resolved. An ended context abandons and
// closes the request to later decisions.
func (r *RetryRequest) Wait(ctx context.Context) models.Decision {
	select {
	case d := <-r.reply:
		return d
	case <-ctx.Done():
		if !r.resolved.CompareAndSwap(false, true) {
			// a decision won the race and is already on its way
			return <-r.reply
		}
		return models.DecisionAbandon
	}
}

// asyncObserver moves signal delivery off the pipeline goroutines while
// keeping emission order.
type asyncObserver struct {
	target Observer
	events chan func()
	done   chan struct{}
}

func newAsyncObserver(target Observer) *asyncObserver {
	a := &asyncObserver{
		target: target,
		events: make(chan func(), 1024),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(a.done)
		for fn := range a.events {
			fn()
		}
	}()
	return a
}

// close waits until every posted signal has been delivered.
func (a *asyncObserver) close() {
	close(a.events)
	<-a.done
}

func (a *asyncObserver) post(fn func()) { a.events <- fn }

func (a *asyncObserver) BatchStarted(units int) {
	a.post(func() { a.target.BatchStarted(units) })
}

func (a *asyncObserver) UnitStarted(unit string, sheets int) {
	a.post(func() { a.target.UnitStarted(unit, sheets) })
}

func (a *asyncObserver) SheetStarted(items int) {
	a.post(func() { a.target.SheetStarted(items) })
}

func (a *asyncObserver) Progress(remaining int) {
	a.post(func() { a.target.Progress(remaining) })
}

func (a *asyncObserver) LoadStarted(unit string) {
	a.post(func() { a.target.LoadStarted(unit) })
}

func (a *asyncObserver) LoadFinished(unit string) {
	a.post(func() { a.target.LoadFinished(unit) })
}

func (a *asyncObserver) SaveStarted(unit, output string) {
	a.post(func() { a.target.SaveStarted(unit, output) })
}

func (a *asyncObserver) SaveFinished(unit, output string) {
	a.post(func() { a.target.SaveFinished(unit, output) })
}

func (a *asyncObserver) LoadFailed(req *RetryRequest) {
	a.post(func() { a.target.LoadFailed(req) })
}

func (a *asyncObserver) SaveFailed(req *RetryRequest) {
	a.post(func() { a.target.SaveFailed(req) })
}

func (a *asyncObserver) BatchStopped() {
	a.post(func() { a.target.BatchStopped() })
}
