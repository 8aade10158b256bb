// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

// diagnostics.go is the structured-logging and error-reporting sink: a
// Logger wrapping logrus, field-builder helpers, and a transition ID minted
// per switch so one transition's log lines can be correlated.

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with the fields this module's operations need.
type Logger struct {
	*logrus.Logger
}

// NewLogger builds a JSON-formatted Logger at the given level ("debug",
// "info", "warn", "error"). An unparsable level falls back to info.
func NewLogger(level string) *Logger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{Logger: l}
}

// NewTransitionID mints a fresh id for correlating one switch_to's log
// lines (hide-all, deactivate, acquire, validate, activate, reattach-router).
func NewTransitionID() string {
	return uuid.New().String()
}

// WithTransition returns a logrus.Entry tagged with a transition id and the
// target engine, the common prefix for every scheduler log line.
func (l *Logger) WithTransition(transitionID string, target EngineId) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"transition_id": transitionID,
		"target_engine": target.String(),
	})
}

// DiagnosticEvent is one error-taxonomy occurrence surfaced to the host.
type DiagnosticEvent struct {
	Kind   ErrorKind
	Engine EngineId
	Reason string
	Cause  error
}

// DiagnosticSink receives DiagnosticEvents; the host registers one callback
// via Scheduler.OnDiagnostic. The system never exits on its own; failures
// are surfaced here instead.
type DiagnosticSink func(DiagnosticEvent)

// diagnostics fans a DiagnosticEvent out to both the logger and the host's
// registered sink, deduplicating repeated recovery-switch causes per engine
// so failures surface once per distinct cause.
type diagnostics struct {
	logger     *Logger
	sink       DiagnosticSink
	lastCauses map[EngineId]string
}

func newDiagnostics(logger *Logger) *diagnostics {
	if logger == nil {
		logger = NewLogger("info")
	}
	return &diagnostics{logger: logger, lastCauses: map[EngineId]string{}}
}

func (d *diagnostics) setSink(sink DiagnosticSink) { d.sink = sink }

func (d *diagnostics) emit(ctx context.Context, ev DiagnosticEvent) {
	entry := d.logger.WithFields(logrus.Fields{
		"kind":   string(ev.Kind),
		"engine": ev.Engine.String(),
	})
	if ev.Cause != nil {
		entry = entry.WithField("cause", ev.Cause.Error())
	}
	entry.Warn(ev.Reason)

	if d.sink != nil {
		d.sink(ev)
	}
}

// emitRecoveryOnce suppresses a recovery-switch diagnostic if the same cause
// string was the last one surfaced for this engine.
func (d *diagnostics) emitRecoveryOnce(ctx context.Context, ev DiagnosticEvent) {
	cause := ev.Reason
	if ev.Cause != nil {
		cause = ev.Cause.Error()
	}
	if d.lastCauses[ev.Engine] == cause {
		return
	}
	d.lastCauses[ev.Engine] = cause
	d.emit(ctx, ev)
}
