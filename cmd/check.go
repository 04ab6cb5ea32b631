package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"link_checker/internal/app"
	"link_checker/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <workbook.xlsx>...",
		Short: "Check the links of the given workbooks and save reports next to them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd)
			if err != nil {
				return err
			}
			defer c.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			host := newTerminalHost(os.Stdout, c.log)
			handler := c.newHandler(host)

			go interruptLoop(handler, cancel, c.log)
			go host.controlLoop(os.Stdin, handler)

			return handler.Run(ctx, args)
		},
	}
}

// interruptLoop cancels the batch on the first interrupt and aborts it on the second.
func interruptLoop(handler *app.Handler, abort context.CancelFunc, log logrus.FieldLogger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	<-sigChan
	log.Warn("interrupt received, finishing lines in flight. Interrupt again to abort")
	handler.Cancel()

	<-sigChan
	log.Warn("aborting")
	abort()
}

// terminalHost prints batch signals and lets the operator answer retry
// prompts from standard input.
type terminalHost struct {
	out io.Writer
	log logrus.FieldLogger

	mu      sync.Mutex
	pending *app.RetryRequest
	items   int
	eof     bool
}

func newTerminalHost(out io.Writer, log logrus.FieldLogger) *terminalHost {
	return &terminalHost{out: out, log: log}
}

func (t *terminalHost) BatchStarted(units int) {
	fmt.Fprintf(t.out, "Checking %d workbook(s). Controls: [c]ancel, [s]tatus\n", units)
}

func (t *terminalHost) UnitStarted(unit string, sheets int) {
	fmt.Fprintf(t.out, "%s: %d sheet(s)\n", unit, sheets)
}

func (t *terminalHost) SheetStarted(items int) {
	t.mu.Lock()
	t.items = items
	t.mu.Unlock()
	t.log.Debugf("sheet started with %d row(s) to check", items)
}

func (t *terminalHost) Progress(remaining int) {
	t.mu.Lock()
	items := t.items
	t.mu.Unlock()
	fmt.Fprintf(t.out, "\r  %d/%d row(s) checked", items-remaining, items)
	if remaining == 0 {
		fmt.Fprintln(t.out)
	}
}

func (t *terminalHost) LoadStarted(unit string)  { t.log.Debugf("loading %s", unit) }
func (t *terminalHost) LoadFinished(unit string) { t.log.Debugf("loaded %s", unit) }

func (t *terminalHost) SaveStarted(unit, output string) {
	t.log.Debugf("saving %s", output)
}

func (t *terminalHost) SaveFinished(unit, output string) {
	fmt.Fprintf(t.out, "%s: report written to %s\n", unit, output)
}

func (t *terminalHost) LoadFailed(req *app.RetryRequest) {
	t.ask(req, fmt.Sprintf("Can't open %s: %v", req.Path, req.Err))
}

func (t *terminalHost) SaveFailed(req *app.RetryRequest) {
	t.ask(req, fmt.Sprintf("Can't save %s: %v", req.Path, req.Err))
}

func (t *terminalHost) BatchStopped() {
	t.mu.Lock()
	t.pending = nil
	t.mu.Unlock()
	fmt.Fprintln(t.out, "Done.")
}

func (t *terminalHost) ask(req *app.RetryRequest, msg string) {
	t.mu.Lock()
	eof := t.eof
	if !eof {
		t.pending = req
	}
	t.mu.Unlock()

	if eof {
		t.log.Warnf("%s. No input left, abandoning", msg)
		req.Resolve(models.DecisionAbandon)
		return
	}
	fmt.Fprintf(t.out, "%s\nClose the file if it is open elsewhere. [r]etry or [a]bandon? ", msg)
}

// answer resolves the pending prompt and reports whether there was one.
func (t *terminalHost) answer(retry bool) bool {
	t.mu.Lock()
	req := t.pending
	t.pending = nil
	t.mu.Unlock()
	if req == nil {
		return false
	}
	if retry {
		return req.Resolve(models.DecisionRetry)
	}
	return req.Resolve(models.DecisionAbandon)
}

// controlLoop reads operator commands until in is exhausted. Prompts left
// after that are abandoned.
func (t *terminalHost) controlLoop(in io.Reader, handler *app.Handler) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "r", "retry":
			if !t.answer(true) {
				fmt.Fprintln(t.out, "Nothing to retry.")
			}
		case "a", "abandon":
			if !t.answer(false) {
				fmt.Fprintln(t.out, "Nothing to abandon.")
			}
		case "c", "cancel":
			handler.Cancel()
		case "s", "status":
			s := handler.State()
			fmt.Fprintf(t.out, "workbook %d/%d, sheet %d, %s, %d row(s) left\n", s.Unit+1, s.Units, s.Sheet+1, s.Phase, s.Remaining)
		case "":
		default:
			fmt.Fprintln(t.out, "Controls: [r]etry, [a]bandon, [c]ancel, [s]tatus")
		}
	}

	t.mu.Lock()
	t.eof = true
	t.mu.Unlock()
	t.answer(false)
}
