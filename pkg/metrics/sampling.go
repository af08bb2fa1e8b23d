package metrics

import (
	"math"
	"sync/atomic"
)

// SamplingObserver forwards roughly rate of the events it sees. Failure
// events always pass so that a low rate never hides an error.
type SamplingObserver struct {
	inner       Observer
	rate        float64
	sampleEvery uint64
	counter     uint64
	keep        map[string]struct{}
}

func NewSamplingObserver(inner Observer, rate float64) *SamplingObserver {
	if rate > 1 {
		rate = 1
	}
	if rate < 0 {
		rate = 0
	}
	var every uint64
	switch rate {
	case 0:
	case 1:
		every = 1
	default:
		every = uint64(math.Round(1.0 / rate))
		if every == 0 {
			every = 1
		}
	}
	return &SamplingObserver{
		inner:       inner,
		rate:        rate,
		sampleEvery: every,
		keep: map[string]struct{}{
			EventTurnFailed:    {},
			EventLLMError:      {},
			EventParseError:    {},
			EventToolError:     {},
			EventStepLimit:     {},
			EventRateLimit:     {},
			EventBreakerOpen:   {},
			EventBreakerDenied: {},
		},
	}
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if _, ok := s.keep[ev.Name]; ok {
		s.inner.RecordEvent(ev)
		return
	}
	if s.rate == 0 {
		return
	}
	if s.sampleEvery <= 1 {
		s.inner.RecordEvent(ev)
		return
	}
	n := atomic.AddUint64(&s.counter, 1)
	if n%s.sampleEvery == 0 {
		s.inner.RecordEvent(ev)
	}
}
