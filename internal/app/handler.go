package app

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"link_checker/internal/config"
	"link_checker/internal/models"
	"link_checker/internal/parser"
	"link_checker/internal/report"

	"github.com/sirupsen/logrus"
)

var ErrAlreadyRunning = errors.New("batch is already running")

// Storage loads the input tables of a unit and writes its reports back.
type Storage interface {
	Load(ctx context.Context, unit string, r models.Range) ([]models.Sheet, error)
	Save(ctx context.Context, unit string, sheets []models.Sheet, row, column int, output string) error
}

// Recorder keeps the outcomes of a verified sheet. Failures are logged only.
type Recorder interface {
	Record(ctx context.Context, unit, sheet string, outcomes models.OutcomeSet) error
}

// Handler runs batches of units through extraction, verification and reporting.
type Handler struct {
	storage   Storage
	checker   LinkChecker
	formatter *report.Formatter
	recorder  Recorder
	observer  Observer
	state     *RunState
	table     config.TableConfig
	prefix    string
	workers   int
	running   atomic.Bool
	log       logrus.FieldLogger
}

func NewHandler(cfg *config.CheckerConfig, storage Storage, checker LinkChecker, observer Observer, log logrus.FieldLogger) *Handler {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Handler{
		storage:   storage,
		checker:   checker,
		formatter: report.NewFormatter(cfg.Report),
		observer:  observer,
		state:     NewRunState(),
		table:     cfg.Table,
		prefix:    cfg.OutputPrefix,
		workers:   cfg.Logic.MaxConcurrentWorkers,
		log:       log,
	}
}

func (h *Handler) SetRecorder(r Recorder) {
	h.recorder = r
}

// Cancel asks the running batch to stop. Lines being checked are finished,
// units not yet started are skipped.
func (h *Handler) Cancel() {
	h.state.Cancel()
	h.log.Info("cancellation requested")
}

func (h *Handler) State() StateSnapshot {
	return h.state.Snapshot()
}

// Run processes units in order. It returns an error only when the batch could
// not start or ctx ended; failed units are reported to the observer instead.
func (h *Handler) Run(ctx context.Context, units []string) error {
	if units == nil {
		return models.ErrInvalidArgument
	}
	if !h.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer h.running.Store(false)

	events := newAsyncObserver(h.observer)
	defer events.close()

	h.state.start(len(units))
	events.BatchStarted(len(units))
	h.log.Infof("batch started with %d unit(s)", len(units))

	defer func() {
		h.state.stop()
		events.BatchStopped()
		h.log.WithField("cancelled", h.state.Cancelled()).Info("batch stopped")
	}()

	dispatcher := NewDispatcher(h.checker, h.workers, events, h.state, h.log)
	for i, unit := range units {
		if h.state.Cancelled() || ctx.Err() != nil {
			break
		}
		h.state.setUnit(i)
		h.processUnit(ctx, unit, events, dispatcher)
	}
	return ctx.Err()
}

func (h *Handler) processUnit(ctx context.Context, unit string, events Observer, dispatcher *Dispatcher) {
	log := h.log.WithField("unit", unit)

	sheets, ok := h.load(ctx, unit, events, log)
	if !ok {
		return
	}
	events.UnitStarted(unit, len(sheets))

	var done []models.Sheet
	for j := range sheets {
		if h.state.Cancelled() || ctx.Err() != nil {
			break
		}
		h.state.setSheet(j)

		column, complete := h.processSheet(ctx, unit, &sheets[j], dispatcher, log)
		if !complete {
			break
		}
		done = append(done, models.Sheet{Name: sheets[j].Name, Rows: column})
	}

	if len(done) == 0 || ctx.Err() != nil {
		log.Info("nothing to save")
		return
	}
	h.save(ctx, unit, done, events, log)
}

// processSheet returns the report column of a sheet, one row per input row.
// complete is false when verification was cut short.
func (h *Handler) processSheet(ctx context.Context, unit string, sheet *models.Sheet, dispatcher *Dispatcher, log logrus.FieldLogger) ([][]string, bool) {
	log = log.WithField("sheet", sheet.Name)

	h.state.setPhase(PhaseExtracting)
	lines := RowTexts(sheet.Rows)
	links, err := parser.ExtractLinks(lines)
	if err != nil {
		log.Errorf("can't extract links: %v", err)
		return nil, false
	}
	log.Infof("found links on %d of %d row(s)", len(links), len(lines))

	h.state.setPhase(PhaseVerifying)
	outcomes, err := dispatcher.VerifyAll(ctx, links)
	if err != nil || len(outcomes) < len(links) {
		log.Warnf("verification interrupted after %d of %d row(s)", len(outcomes), len(links))
		return nil, false
	}

	if h.recorder != nil {
		if err := h.recorder.Record(ctx, unit, sheet.Name, outcomes); err != nil {
			log.Warnf("can't record outcomes: %v", err)
		}
	}

	column := make([][]string, len(lines))
	for i := range lines {
		line, ok := outcomes[i]
		if !ok {
			column[i] = []string{""}
			continue
		}
		text, err := h.formatter.FormatAll(line)
		if err != nil {
			log.WithField("row", i).Errorf("can't format report: %v", err)
		}
		column[i] = []string{text}
	}
	return column, true
}

func (h *Handler) load(ctx context.Context, unit string, events Observer, log logrus.FieldLogger) ([]models.Sheet, bool) {
	r := models.Range{
		Row:    h.table.InputRow,
		Column: h.table.InputColumn,
		Width:  h.table.Width,
		Height: h.table.Height,
	}

	for {
		h.state.setPhase(PhaseLoading)
		events.LoadStarted(unit)
		sheets, err := h.storage.Load(ctx, unit, r)
		events.LoadFinished(unit)
		if err == nil {
			return sheets, true
		}

		log.Errorf("can't load unit: %v", err)
		req := NewRetryRequest(unit, unit, PhaseLoading, err)
		events.LoadFailed(req)
		if d := req.Wait(ctx); d != models.DecisionRetry {
			log.Warn("unit abandoned")
			return nil, false
		}
		log.Info("retrying load")
	}
}

func (h *Handler) save(ctx context.Context, unit string, sheets []models.Sheet, events Observer, log logrus.FieldLogger) {
	output := OutputName(unit, h.prefix)
	log = log.WithField("output", output)

	for {
		h.state.setPhase(PhaseSaving)
		events.SaveStarted(unit, output)
		err := h.storage.Save(ctx, unit, sheets, h.table.OutputRow, h.table.OutputColumn, output)
		events.SaveFinished(unit, output)
		if err == nil {
			log.Info("report saved")
			return
		}

		log.Errorf("can't save report: %v", err)
		req := NewRetryRequest(unit, output, PhaseSaving, err)
		events.SaveFailed(req)
		if d := req.Wait(ctx); d != models.DecisionRetry {
			log.Warn("save abandoned")
			return
		}
		log.Info("retrying save")
	}
}

// OutputName puts prefix in front of the file name part of unit.
func OutputName(unit, prefix string) string {
	i := strings.LastIndexAny(unit, `/\`)
	return unit[:i+1] + prefix + unit[i+1:]
}

// RowTexts turns every row of a grid into one line of text.
func RowTexts(rows [][]string) []string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			if cell = strings.TrimSpace(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
		lines[i] = strings.Join(cells, " ")
	}
	return lines
}
