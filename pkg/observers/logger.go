// Package observers turns metrics events into logs and per-session artifacts.
package observers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/harunnryd/todoagent/pkg/metrics"
)

// LoggerObserver logs every event at debug level.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	if !o.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []slog.Attr{
		slog.String("event", ev.Name),
		slog.Float64("value", ev.Value),
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(context.Background(), slog.LevelDebug, "metrics_event", attrs...)
}

// MultiObserver fans events out to several observers.
type MultiObserver struct {
	list []metrics.Observer
}

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	return &MultiObserver{list: list}
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m.list {
		if obs != nil {
			obs.RecordEvent(ev)
		}
	}
}

// Close flushes and closes every member that supports it, in order.
func (m *MultiObserver) Close() error {
	var errs error
	for _, obs := range m.list {
		switch v := obs.(type) {
		case interface{ Close() error }:
			errs = errors.Join(errs, v.Close())
		case metrics.Flusher:
			errs = errors.Join(errs, v.Flush())
		}
	}
	return errs
}
