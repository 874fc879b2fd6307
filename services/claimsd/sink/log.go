package sink

import (
	"log/slog"

	"lockdrop/core/events"
)

// LogEmitter writes each committed event as a structured log line.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements events.Emitter.
func (l LogEmitter) Emit(e events.Event) {
	if e == nil || l.Logger == nil {
		return
	}
	l.Logger.Info("event committed", slog.String("type", e.EventType()), slog.Any("event", e))
}
