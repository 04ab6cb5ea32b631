package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"link_checker/internal/app"
	"link_checker/internal/config"
	"link_checker/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalHostAnswers(t *testing.T) {
	log, _ := test.NewNullLogger()
	var out bytes.Buffer
	host := newTerminalHost(&out, log)

	assert.False(t, host.answer(true))

	req := app.NewRetryRequest("a.xlsx", "a.xlsx", app.PhaseLoading, errors.New("locked"))
	host.LoadFailed(req)
	assert.Contains(t, out.String(), "Can't open a.xlsx: locked")

	require.True(t, host.answer(true))
	assert.True(t, req.Resolved())
	assert.Equal(t, models.DecisionRetry, req.Wait(context.Background()))
	assert.False(t, host.answer(false))
}

func TestTerminalHostAbandonsAfterInputEnds(t *testing.T) {
	log, _ := test.NewNullLogger()
	var out bytes.Buffer
	host := newTerminalHost(&out, log)
	handler := app.NewHandler(config.DefaultConfig(), nil, nil, host, log)

	pending := app.NewRetryRequest("b.xlsx", "out_b.xlsx", app.PhaseSaving, errors.New("denied"))
	host.SaveFailed(pending)

	host.controlLoop(strings.NewReader("s\nhelp\n"), handler)
	assert.Contains(t, out.String(), "row(s) left")
	assert.Contains(t, out.String(), "Controls:")
	assert.Equal(t, models.DecisionAbandon, pending.Wait(context.Background()))

	late := app.NewRetryRequest("c.xlsx", "c.xlsx", app.PhaseLoading, errors.New("locked"))
	host.LoadFailed(late)
	assert.Equal(t, models.DecisionAbandon, late.Wait(context.Background()))
}

func TestControlLoopCancels(t *testing.T) {
	log, _ := test.NewNullLogger()
	var out bytes.Buffer
	host := newTerminalHost(&out, log)
	handler := app.NewHandler(config.DefaultConfig(), nil, nil, host, log)

	host.controlLoop(strings.NewReader("c\n"), handler)
	assert.True(t, handler.State().Cancelled)
}

func TestTerminalHostProgress(t *testing.T) {
	log, _ := test.NewNullLogger()
	var out bytes.Buffer
	host := newTerminalHost(&out, log)

	host.SheetStarted(4)
	host.Progress(1)
	host.Progress(0)
	assert.Contains(t, out.String(), "3/4 row(s) checked")
	assert.True(t, strings.HasSuffix(out.String(), "4/4 row(s) checked\n"))
}

func TestLoadConfigDefaults(t *testing.T) {
	configPath = "does-not-exist.yaml"
	cfg, err := loadConfig(false)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Logic.MaxConcurrentWorkers, cfg.Logic.MaxConcurrentWorkers)

	_, err = loadConfig(true)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, log.IsLevelEnabled(logrus.DebugLevel))

	_, err = newLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
