// Package mock provides a scripted model adapter for tests and offline runs.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/harunnryd/todoagent/pkg/llm"
)

// ErrScriptExhausted is returned once every scripted response has been used.
var ErrScriptExhausted = errors.New("mock llm: script exhausted")

type LLMAdapter struct {
	cfg LLMConfig

	mu       sync.Mutex
	next     int
	requests []llm.Context
}

// LLMConfig scripts the adapter. Responses are returned in order; a non-nil
// entry in Errors at the same index is returned instead of the response.
type LLMConfig struct {
	Responses []string `mapstructure:"responses"`
	Errors    []error  `mapstructure:"-"`
	// Repeat replays the last response forever instead of failing.
	Repeat bool `mapstructure:"repeat"`
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, cloneContext(input))

	i := a.next
	if i >= len(a.cfg.Responses) {
		if !a.cfg.Repeat || len(a.cfg.Responses) == 0 {
			return llm.Response{}, ErrScriptExhausted
		}
		i = len(a.cfg.Responses) - 1
	}
	a.next++
	if i < len(a.cfg.Errors) && a.cfg.Errors[i] != nil {
		return llm.Response{}, a.cfg.Errors[i]
	}
	return a.FromProviderFormat(a.cfg.Responses[i])
}

// ToProviderFormat returns a copy of the messages; the mock has no wire format.
func (a *LLMAdapter) ToProviderFormat(ctx llm.Context) (any, error) {
	return cloneContext(ctx).Messages, nil
}

func (a *LLMAdapter) FromProviderFormat(raw any) (llm.Response, error) {
	text, ok := raw.(string)
	if !ok {
		return llm.Response{}, errors.New("mock llm: expected string response")
	}
	return llm.Response{
		Text:         text,
		FinishReason: "stop",
		Usage: llm.Usage{
			PromptTokens:     0,
			CompletionTokens: len(text) / 4,
			TotalTokens:      len(text) / 4,
		},
	}, nil
}

// Requests returns every context passed to Generate, in call order.
func (a *LLMAdapter) Requests() []llm.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Context, len(a.requests))
	copy(out, a.requests)
	return out
}

// Calls reports how many times Generate was invoked.
func (a *LLMAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func cloneContext(in llm.Context) llm.Context {
	msgs := make([]llm.Message, len(in.Messages))
	copy(msgs, in.Messages)
	return llm.Context{Messages: msgs, JSONMode: in.JSONMode}
}

var _ llm.LLMAdapter = (*LLMAdapter)(nil)
