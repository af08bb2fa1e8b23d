package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/todoagent/pkg/metrics"
)

// LatencyObserver logs a per-turn breakdown of where time went: model calls
// versus tool calls.
type LatencyObserver struct {
	mu    sync.Mutex
	turns map[string]*turnTrace
	log   *slog.Logger
}

type turnTrace struct {
	started  time.Time
	llmMs    float64
	toolMs   float64
	llmCalls int
	tools    int
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		turns: make(map[string]*turnTrace),
		log:   log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	sessionID := sessionOf(ev)
	if sessionID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.turns[sessionID]
	if ev.Name == metrics.EventTurnStarted {
		o.turns[sessionID] = &turnTrace{started: ev.Time}
		return
	}
	if t == nil {
		return
	}
	switch ev.Name {
	case metrics.EventLLMResponse, metrics.EventLLMError:
		t.llmMs += ev.Value
		t.llmCalls++
	case metrics.EventToolCall, metrics.EventToolError:
		t.toolMs += ev.Value
		t.tools++
	case metrics.EventTurnCompleted, metrics.EventTurnFailed:
		o.log.Info("turn_latency",
			"session_id", sessionID,
			"status", statusOf(ev.Name),
			"total_ms", durationMs(t.started, ev.Time),
			"llm_ms", int64(t.llmMs),
			"tool_ms", int64(t.toolMs),
			"llm_calls", t.llmCalls,
			"tool_calls", t.tools,
		)
		delete(o.turns, sessionID)
	}
}

func statusOf(name string) string {
	if name == metrics.EventTurnFailed {
		return "failed"
	}
	return "ok"
}

func sessionOf(ev metrics.MetricsEvent) string {
	if ev.Tags == nil {
		return ""
	}
	return ev.Tags["session_id"]
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
