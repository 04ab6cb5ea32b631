package app

import (
	"context"
	"net/http"
	"sort"

	"link_checker/internal/models"
	workqueue "link_checker/internal/work_queue"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type LinkChecker interface {
	CheckLink(ctx context.Context, rawURL string) (models.Outcome, error)
}

// Dispatcher verifies the links of one sheet with a fixed pool of workers.
type Dispatcher struct {
	checker  LinkChecker
	workers  int
	observer Observer
	state    *RunState
	log      logrus.FieldLogger
}

func NewDispatcher(checker LinkChecker, workers int, observer Observer, state *RunState, log logrus.FieldLogger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		checker:  checker,
		workers:  workers,
		observer: observer,
		state:    state,
		log:      log,
	}
}

type lineResult struct {
	line     int
	outcomes []models.Outcome
}

// VerifyAll checks every line of links and returns the outcomes per line.
// A line appears in the result only when all of its links were checked, so a
// cancelled run yields a subset of lines, never a truncated one.
func (d *Dispatcher) VerifyAll(ctx context.Context, links models.LinkSet) (models.OutcomeSet, error) {
	if links == nil {
		return nil, models.ErrInvalidArgument
	}
	d.observer.SheetStarted(len(links))

	lines := make([]int, 0, len(links))
	for line := range links {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	queue := workqueue.NewLineQueue(len(lines))
	for _, line := range lines {
		queue.Add(line)
	}
	d.state.setRemaining(queue.Size())

	outcomes := make(models.OutcomeSet, len(links))
	results := make(chan lineResult)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for r := range results {
			outcomes[r.line] = r.outcomes
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		workerID := i
		g.Go(func() error {
			d.worker(gctx, workerID, links, queue, results)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-collected

	return outcomes, ctx.Err()
}

func (d *Dispatcher) worker(ctx context.Context, workerID int, links models.LinkSet, queue *workqueue.LineQueue, results chan<- lineResult) {
	log := d.log.WithField("worker", workerID)

	for {
		if ctx.Err() != nil || d.state.Cancelled() {
			return
		}

		line, ok := queue.Take(func(remaining int) {
			d.state.setRemaining(remaining)
			d.observer.Progress(remaining)
		})
		if !ok {
			return
		}

		urls := links[line]
		checked := make([]models.Outcome, 0, len(urls))
		for _, u := range urls {
			outcome, err := d.checker.CheckLink(ctx, u)
			if err != nil {
				log.WithFields(logrus.Fields{"line": line, "url": u}).Warnf("can't check link: %v", err)
				outcome = models.Outcome{URL: u, StatusCode: http.StatusNotFound, Matches: []string{}}
			}
			checked = append(checked, outcome)
		}

		// a context that ended mid-line turned the remaining checks into failures
		if ctx.Err() != nil {
			return
		}
		results <- lineResult{line: line, outcomes: checked}
	}
}
