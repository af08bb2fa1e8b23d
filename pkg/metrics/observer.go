// Package metrics carries loop, tool and model events to pluggable observers.
package metrics

import "time"

// MetricsEvent is one observation. Value holds the event's main measurement
// (milliseconds for latency events, tokens for usage events).
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Emit records an event on obs, stamping Time when unset. A nil observer is ignored.
func Emit(obs Observer, ev MetricsEvent) {
	if obs == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	obs.RecordEvent(ev)
}
