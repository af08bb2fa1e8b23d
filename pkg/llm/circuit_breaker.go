package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/harunnryd/todoagent/pkg/metrics"
	"github.com/harunnryd/todoagent/pkg/resilience"
)

// CircuitBreakerAdapter wraps an LLMAdapter with rate-limit circuit breaking.
// It fails fast while open and never retries.
type CircuitBreakerAdapter struct {
	inner   LLMAdapter
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
}

func NewCircuitBreakerAdapter(inner LLMAdapter, breaker *resilience.CircuitBreaker) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerAdapter{inner: inner, breaker: breaker}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

// SetObserver enables breaker events. Call it before the first Generate.
func (a *CircuitBreakerAdapter) SetObserver(obs metrics.Observer) { a.obs = obs }

// Breaker exposes the underlying breaker.
func (a *CircuitBreakerAdapter) Breaker() *resilience.CircuitBreaker { return a.breaker }

func (a *CircuitBreakerAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	if !a.breaker.Allow() {
		retry := a.breaker.RetryAfter()
		a.record(metrics.EventBreakerDenied, float64(retry.Milliseconds()))
		return Response{}, resilience.RateLimitError{
			Provider: a.Name(),
			Message:  fmt.Sprintf("circuit open, retry in %s", retry.Round(time.Second)),
		}
	}

	before := a.breaker.State()
	resp, err := a.inner.Generate(ctx, input)
	if err != nil {
		if resilience.IsRateLimit(err) {
			a.record(metrics.EventRateLimit, 0)
		}
		a.breaker.OnError(err)
	} else {
		a.breaker.OnSuccess()
	}

	switch after := a.breaker.State(); {
	case after == resilience.BreakerOpen && before != resilience.BreakerOpen:
		a.record(metrics.EventBreakerOpen, float64(a.breaker.RetryAfter().Milliseconds()))
	case after == resilience.BreakerClosed && before == resilience.BreakerHalfOpen:
		a.record(metrics.EventBreakerClose, 0)
	}
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (a *CircuitBreakerAdapter) ToProviderFormat(ctx Context) (any, error) {
	return a.inner.ToProviderFormat(ctx)
}

func (a *CircuitBreakerAdapter) FromProviderFormat(raw any) (Response, error) {
	return a.inner.FromProviderFormat(raw)
}

func (a *CircuitBreakerAdapter) record(name string, value float64) {
	metrics.Emit(a.obs, metrics.MetricsEvent{
		Name:  name,
		Value: value,
		Tags: map[string]string{
			"provider":  a.inner.Name(),
			"component": "llm",
			"breaker":   a.breaker.State().String(),
		},
	})
}
