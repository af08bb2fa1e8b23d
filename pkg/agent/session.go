// Package agent runs the tool-calling conversation loop: user text goes to
// the model, the model's envelopes are classified, tool calls are executed and
// their observations fed back until the model produces an output.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/todoagent/pkg/envelope"
	"github.com/harunnryd/todoagent/pkg/errorsx"
	"github.com/harunnryd/todoagent/pkg/llm"
	"github.com/harunnryd/todoagent/pkg/logging"
	"github.com/harunnryd/todoagent/pkg/metrics"
	"github.com/harunnryd/todoagent/pkg/redact"
	"github.com/harunnryd/todoagent/pkg/resilience"
)

const DefaultMaxSteps = 8

// ToolErrorPolicy decides what a failing tool call does to the turn.
type ToolErrorPolicy string

const (
	// ToolErrorObserve reports the failure to the model as {"error": "..."}.
	ToolErrorObserve ToolErrorPolicy = "observe"
	// ToolErrorAbort fails the turn.
	ToolErrorAbort ToolErrorPolicy = "abort"
)

// ParseToolErrorPolicy accepts "", "observe" or "abort".
func ParseToolErrorPolicy(value string) (ToolErrorPolicy, error) {
	switch ToolErrorPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", ToolErrorObserve:
		return ToolErrorObserve, nil
	case ToolErrorAbort:
		return ToolErrorAbort, nil
	default:
		return "", fmt.Errorf("tool_error_policy must be observe or abort, got %q", value)
	}
}

type Config struct {
	// MaxSteps bounds model invocations per user turn.
	MaxSteps                 int
	UnknownToolAsObservation bool
	ToolErrorPolicy          ToolErrorPolicy
	Prompt                   PromptConfig
}

// Reply is the result of one user turn.
type Reply struct {
	Text      string
	Steps     int
	ToolCalls int
	Usage     llm.Usage
}

type Session struct {
	id         string
	cfg        Config
	model      llm.LLMAdapter
	tools      llm.ToolRegistry
	transcript *Transcript
	sm         *stateMachine
	logger     *slog.Logger
	obs        metrics.Observer
	busy       atomic.Bool

	pendingListeners []StateListener
}

type Option func(*Session)

func WithSessionID(id string) Option {
	return func(s *Session) {
		if strings.TrimSpace(id) != "" {
			s.id = id
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithObserver(obs metrics.Observer) Option {
	return func(s *Session) { s.obs = obs }
}

func WithStateListener(l StateListener) Option {
	return func(s *Session) { s.pendingListeners = append(s.pendingListeners, l) }
}

// NewSession starts a transcript whose system prompt lists registry's tools.
func NewSession(model llm.LLMAdapter, registry llm.ToolRegistry, cfg Config, opts ...Option) *Session {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.ToolErrorPolicy == "" {
		cfg.ToolErrorPolicy = ToolErrorObserve
	}
	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		model:  model,
		tools:  registry,
		logger: logging.Discard(),
		obs:    metrics.NoopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "agent").With("session_id", s.id)
	s.sm = newStateMachine(s.id)
	for _, l := range s.pendingListeners {
		s.sm.AddListener(l)
	}
	s.pendingListeners = nil
	s.transcript = NewTranscript(BuildSystemPrompt(registry.Tools(), cfg.Prompt))
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return s.sm.State() }

// Transcript exposes the session log for inspection.
func (s *Session) Transcript() *Transcript { return s.transcript }

func (s *Session) AddListener(l StateListener) { s.sm.AddListener(l) }

// Send runs one user turn to completion and returns the model's output text.
// On error the turn is aborted and the session is ready for the next input;
// the user message stays in the transcript.
func (s *Session) Send(ctx context.Context, text string) (Reply, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return Reply{}, ErrBusy
	}
	defer s.busy.Store(false)

	start := time.Now()
	s.logger.Info("agent_turn_started", "text", redact.Text(text))
	s.record(metrics.EventTurnStarted, 0, nil)

	if err := s.sm.Transition(StateInvoking, "user_input"); err != nil {
		return Reply{}, err
	}
	s.transcript.appendUser(text)

	reply, err := s.run(ctx)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		s.sm.abort(string(errorsx.Reason(err)))
		s.logger.Error("agent_turn_failed", append(errorsx.LogAttrs(err), "steps", reply.Steps)...)
		s.record(metrics.EventTurnFailed, elapsed, map[string]any{
			"reason_code": string(errorsx.Reason(err)),
			"steps":       reply.Steps,
		})
		return reply, err
	}
	s.logger.Info("agent_turn_completed",
		"steps", reply.Steps,
		"tool_calls", reply.ToolCalls,
		"total_tokens", reply.Usage.TotalTokens,
		"output", redact.Text(reply.Text))
	s.record(metrics.EventTurnCompleted, elapsed, map[string]any{
		"steps":      reply.Steps,
		"tool_calls": reply.ToolCalls,
	})
	return reply, nil
}

func (s *Session) run(ctx context.Context) (Reply, error) {
	var reply Reply
	for step := 0; ; step++ {
		if step > 0 {
			if step >= s.cfg.MaxSteps {
				s.record(metrics.EventStepLimit, float64(step), nil)
				return reply, errorsx.Wrap(
					fmt.Errorf("%w: %d model calls without output", ErrStepLimit, step),
					errorsx.ReasonStepLimit)
			}
			if err := s.sm.Transition(StateInvoking, "continue"); err != nil {
				return reply, err
			}
		}
		if err := ctx.Err(); err != nil {
			return reply, err
		}

		resp, err := s.generate(ctx)
		reply.Steps++
		if err != nil {
			return reply, err
		}
		reply.Usage = addUsage(reply.Usage, resp.Usage)

		if err := s.sm.Transition(StateClassifying, "model_response"); err != nil {
			return reply, err
		}
		env, err := envelope.Extract(resp.Text)
		if err != nil {
			s.logger.Warn("envelope_parse_error", "raw", redact.Text(resp.Text), "error", err)
			s.record(metrics.EventParseError, 0, nil)
			return reply, errorsx.Wrap(err, errorsx.ReasonParse)
		}
		s.record(metrics.EventEnvelopeParsed, 0, map[string]any{"type": string(env.Type)})

		switch env.Type {
		case envelope.TypePlan:
			s.logger.Debug("agent_plan", "plan", redact.Text(env.Text))
			s.transcript.appendAssistant(resp.Text)

		case envelope.TypeAction:
			if err := s.sm.Transition(StateDispatching, env.Function); err != nil {
				return reply, err
			}
			observation, err := s.dispatch(ctx, env)
			if err != nil {
				return reply, err
			}
			s.transcript.appendExchange(resp.Text, observation)
			reply.ToolCalls++

		case envelope.TypeOutput:
			s.transcript.appendAssistant(resp.Text)
			if err := s.sm.Transition(StateDone, "output"); err != nil {
				return reply, err
			}
			reply.Text = env.Text
			if err := s.sm.Transition(StateAwaitingUser, "turn_complete"); err != nil {
				return reply, err
			}
			return reply, nil

		default:
			perr := &ProtocolError{Type: env.Type, Raw: resp.Text}
			s.logger.Warn("envelope_protocol_error", "type", string(env.Type), "raw", redact.Text(resp.Text))
			s.record(metrics.EventParseError, 0, map[string]any{"type": string(env.Type)})
			return reply, errorsx.Wrap(perr, errorsx.ReasonProtocol)
		}
	}
}

func (s *Session) generate(ctx context.Context) (llm.Response, error) {
	in := llm.Context{Messages: s.transcript.Messages(), JSONMode: true}
	start := time.Now()
	s.record(metrics.EventLLMRequest, float64(len(in.Messages)), nil)
	resp, err := s.model.Generate(ctx, in)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		reason := errorsx.ReasonLLMGenerate
		if resilience.IsRateLimit(err) {
			reason = errorsx.ReasonLLMRateLimit
		}
		err = errorsx.Wrap(err, reason)
		s.logger.Error("llm_generate_error", errorsx.LogAttrs(err)...)
		s.record(metrics.EventLLMError, latency, map[string]any{"reason_code": string(reason)})
		return llm.Response{}, err
	}
	s.logger.Debug("llm_response", "text", redact.Text(resp.Text), "finish_reason", resp.FinishReason)
	s.record(metrics.EventLLMResponse, latency, nil)
	if resp.Usage.TotalTokens > 0 {
		s.record(metrics.EventLLMUsage, float64(resp.Usage.TotalTokens), map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
		})
	}
	return resp, nil
}

// dispatch runs the requested tool and wraps its result as an observation.
// Depending on policy, a tool failure either becomes an error observation or
// aborts the turn.
func (s *Session) dispatch(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error) {
	start := time.Now()
	result, err := s.tools.HandleTool(ctx, env.Function, env.Input)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		s.logger.Warn("tool_error", append(errorsx.LogAttrs(err), "tool", env.Function)...)
		s.record(metrics.EventToolError, latency, map[string]any{
			"tool":        env.Function,
			"reason_code": string(errorsx.Reason(err)),
		})
		if !s.observeToolError(err) {
			return envelope.Envelope{}, err
		}
		return envelope.Observation(map[string]string{"error": err.Error()})
	}
	s.logger.Debug("tool_completed", "tool", env.Function, "latency_ms", latency)
	s.record(metrics.EventToolCall, latency, map[string]any{"tool": env.Function})
	obs, err := envelope.Observation(result)
	if err != nil {
		return envelope.Envelope{}, errorsx.Wrapf(err, errorsx.ReasonToolArgs, "encode %s result", env.Function)
	}
	return obs, nil
}

func (s *Session) observeToolError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errorsx.HasReason(err, errorsx.ReasonUnknownTool) {
		return s.cfg.UnknownToolAsObservation
	}
	return s.cfg.ToolErrorPolicy == ToolErrorObserve
}

func (s *Session) record(name string, value float64, fields map[string]any) {
	metrics.Emit(s.obs, metrics.MetricsEvent{
		Name:   name,
		Value:  value,
		Fields: fields,
		Tags: map[string]string{
			"session_id": s.id,
			"component":  "agent",
			"provider":   s.model.Name(),
		},
	})
}

func addUsage(a, b llm.Usage) llm.Usage {
	return llm.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}
