package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAsyncObserverDrainsOnClose(t *testing.T) {
	mem := NewMemoryObserver()
	async := NewAsyncObserver(mem, 16)
	for i := 0; i < 10; i++ {
		async.RecordEvent(MetricsEvent{Name: EventToolCall})
	}
	if err := async.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(mem.Named(EventToolCall)); got != 10 {
		t.Fatalf("expected 10 events, got %d", got)
	}
	async.RecordEvent(MetricsEvent{Name: EventToolCall})
	if got := len(mem.Events); got != 10 {
		t.Fatalf("event recorded after close: %d", got)
	}
}

func TestSamplingKeepsFailures(t *testing.T) {
	mem := NewMemoryObserver()
	s := NewSamplingObserver(mem, 0)
	s.RecordEvent(MetricsEvent{Name: EventToolCall})
	s.RecordEvent(MetricsEvent{Name: EventTurnFailed})
	names := mem.Names()
	if len(names) != 1 || names[0] != EventTurnFailed {
		t.Fatalf("unexpected events: %v", names)
	}
}

func TestSamplingRate(t *testing.T) {
	mem := NewMemoryObserver()
	s := NewSamplingObserver(mem, 0.5)
	for i := 0; i < 10; i++ {
		s.RecordEvent(MetricsEvent{Name: EventLLMRequest})
	}
	if got := len(mem.Events); got != 5 {
		t.Fatalf("expected 5 sampled events, got %d", got)
	}
}

func TestJSONLObserverWritesLines(t *testing.T) {
	var buf bytes.Buffer
	obs := NewJSONLObserver(&buf)
	obs.RecordEvent(MetricsEvent{
		Name:  EventLLMUsage,
		Time:  time.Unix(0, 0),
		Value: 42,
		Tags:  map[string]string{"provider": "mock"},
	})
	if buf.Len() != 0 {
		t.Fatalf("expected buffered output before flush")
	}
	if err := obs.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	var row map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &row); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if row["name"] != EventLLMUsage || row["provider"] != "mock" || row["value"] != float64(42) {
		t.Fatalf("unexpected row: %v", row)
	}
}

func TestEmitStampsTime(t *testing.T) {
	mem := NewMemoryObserver()
	Emit(mem, MetricsEvent{Name: EventTurnStarted})
	Emit(nil, MetricsEvent{Name: EventTurnStarted})
	if len(mem.Events) != 1 || mem.Events[0].Time.IsZero() {
		t.Fatalf("expected stamped event, got %+v", mem.Events)
	}
}
