// Package todoagent wires configuration, providers, the todo store and the
// agent session into a runnable chat engine.
package todoagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/todoagent/pkg/agent"
	"github.com/harunnryd/todoagent/pkg/errorsx"
	"github.com/harunnryd/todoagent/pkg/llm"
	"github.com/harunnryd/todoagent/pkg/logging"
	"github.com/harunnryd/todoagent/pkg/metrics"
	"github.com/harunnryd/todoagent/pkg/observers"
	"github.com/harunnryd/todoagent/pkg/redact"
	"github.com/harunnryd/todoagent/pkg/store"
	"github.com/harunnryd/todoagent/pkg/tools"
	"github.com/harunnryd/todoagent/pkg/transports"
	"github.com/harunnryd/todoagent/pkg/transports/console"
)

type Engine struct {
	cfg       Config
	logger    *slog.Logger
	providers *ProviderRegistry
	transport transports.Transport
	store     store.Store
	model     llm.LLMAdapter
	session   *agent.Session

	asyncObs    *metrics.AsyncObserver
	multiObs    *observers.MultiObserver
	usageObs    *observers.UsageObserver
	metricsFile *os.File

	drainOnce sync.Once
	drainErr  error
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Transport defaults to the console on stdin/stdout.
	Transport transports.Transport
	// Logger skips logging.Init when set.
	Logger *slog.Logger
	// Store and LLM bypass the provider registry when set.
	Store store.Store
	LLM   llm.LLMAdapter
}

// NewEngine builds every collaborator named by opts.Config. On error, the
// parts already opened are released.
func NewEngine(ctx context.Context, opts EngineOptions) (_ *Engine, err error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	logger.Info("todoagent_init",
		"environment", cfg.Environment,
		"llm_provider", cfg.Vendors.LLM.Provider,
		"llm_api_key", redact.Secret(settingString(cfg.Vendors.LLM.Settings, "api_key")),
		"store_driver", cfg.Store.Driver,
		"max_steps", cfg.Agent.MaxSteps,
	)

	providers := opts.Providers
	if providers == nil {
		providers = DefaultProviderRegistry()
	}
	e := &Engine{cfg: cfg, logger: logger, providers: providers}
	defer func() {
		if err != nil {
			_ = e.Drain()
		}
	}()

	obs, err := e.buildObservers()
	if err != nil {
		return nil, err
	}

	e.store = opts.Store
	if e.store == nil {
		if e.store, err = providers.BuildStore(ctx, cfg.Store.Driver, cfg); err != nil {
			return nil, err
		}
	}

	e.model = opts.LLM
	if e.model == nil {
		if e.model, err = providers.BuildLLM(ctx, cfg.Vendors.LLM.Provider, cfg); err != nil {
			return nil, err
		}
	}
	if cb, ok := e.model.(*llm.CircuitBreakerAdapter); ok {
		cb.SetObserver(obs)
	}

	policy, err := agent.ParseToolErrorPolicy(cfg.Agent.ToolErrorPolicy)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonConfig)
	}
	registry := tools.NewRegistry(e.store, tools.WithLogger(logger))
	e.session = agent.NewSession(e.model, registry, agent.Config{
		MaxSteps:                 cfg.Agent.MaxSteps,
		UnknownToolAsObservation: cfg.Agent.UnknownToolAsObservation,
		ToolErrorPolicy:          policy,
		Prompt: agent.PromptConfig{
			BasePrompt: cfg.Agent.BasePrompt,
			Persona:    cfg.Agent.Persona,
			Style:      cfg.Agent.Style,
		},
	}, agent.WithLogger(logger), agent.WithObserver(obs), agent.WithStateListener(stateRecorder(logger, obs)))

	e.transport = opts.Transport
	if e.transport == nil {
		e.transport = console.New(console.Config{In: os.Stdin, Out: os.Stdout})
	}

	logger.Info("todoagent_ready",
		"session_id", e.session.ID(),
		"provider", e.model.Name(),
		"transport", e.transport.Name(),
	)
	return e, nil
}

// buildObservers assembles logger, latency, artifact and JSONL sinks behind a
// sampling filter and an async buffer.
func (e *Engine) buildObservers() (metrics.Observer, error) {
	oc := e.cfg.Observability
	list := []metrics.Observer{
		observers.NewLoggerObserver(e.logger),
		observers.NewLatencyObserver(e.logger),
	}
	if dir := strings.TrimSpace(oc.ArtifactsDir); dir != "" {
		if oc.RetentionDays > 0 {
			removed, err := observers.PurgeArtifacts(dir, time.Duration(oc.RetentionDays)*24*time.Hour)
			if err != nil {
				e.logger.Warn("artifact_purge_failed", "dir", dir, "error", err)
			} else if removed > 0 {
				e.logger.Info("artifact_purge", "dir", dir, "removed", removed)
			}
		}
		e.usageObs = observers.NewUsageObserver(dir)
		list = append(list, observers.NewTimelineObserver(dir), e.usageObs)
	}
	if path := strings.TrimSpace(oc.MetricsFile); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errorsx.Wrapf(err, errorsx.ReasonConfig, "create metrics dir")
			}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errorsx.Wrapf(err, errorsx.ReasonConfig, "open metrics file")
		}
		e.metricsFile = f
		list = append(list, metrics.NewJSONLObserver(f))
	}
	e.multiObs = observers.NewMultiObserver(list...)

	var obs metrics.Observer = metrics.NewSamplingObserver(e.multiObs, oc.SampleRate)
	if oc.AsyncBuffer > 0 {
		e.asyncObs = metrics.NewAsyncObserver(obs, oc.AsyncBuffer)
		obs = e.asyncObs
	}
	return obs, nil
}

// Serve runs the chat loop until the transport reaches end of input or ctx is
// cancelled. A failed turn is reported to the user and the loop continues.
func (e *Engine) Serve(ctx context.Context) error {
	if err := e.Health(); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonConfig)
	}
	if err := e.transport.Start(ctx); err != nil {
		return errorsx.Wrapf(err, errorsx.ReasonTransport, "start %s", e.transport.Name())
	}
	if rr, ok := e.transport.(transports.ReadyReporter); ok {
		attrs := []any{"transport", e.transport.Name()}
		for k, v := range rr.ReadyFields() {
			attrs = append(attrs, k, v)
		}
		e.logger.Info("transport_ready", attrs...)
	}
	for {
		line, err := e.transport.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, transports.ErrClosed) {
				e.logger.Info("transport_input_closed", "transport", e.transport.Name())
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, transports.ErrLineTooLong) {
				e.logger.Warn("transport_line_too_long", "transport", e.transport.Name())
				if werr := e.transport.WriteLine(ctx, LineTooLongNotice); werr != nil {
					return errorsx.Wrap(werr, errorsx.ReasonTransport)
				}
				continue
			}
			return errorsx.Wrap(err, errorsx.ReasonTransport)
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		reply, err := e.session.Send(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if werr := e.transport.WriteLine(ctx, FailureNotice(err)); werr != nil {
				return errorsx.Wrap(werr, errorsx.ReasonTransport)
			}
			continue
		}
		if err := e.transport.WriteLine(ctx, reply.Text); err != nil {
			return errorsx.Wrap(err, errorsx.ReasonTransport)
		}
	}
}

// LineTooLongNotice answers an input line the transport had to drop.
const LineTooLongNotice = "That message is too long, please shorten it."

// FailureNotice is the short line shown to the user when a turn fails.
func FailureNotice(err error) string {
	switch errorsx.Reason(err) {
	case errorsx.ReasonLLMRateLimit:
		return "The model is busy right now, please try again in a moment."
	case errorsx.ReasonParse, errorsx.ReasonProtocol:
		return "I could not understand the model's reply, please try again."
	case errorsx.ReasonStepLimit:
		return "That took too many steps, please rephrase the request."
	case errorsx.ReasonStore:
		return "The todo store is unavailable, please try again."
	default:
		return fmt.Sprintf("Something went wrong (%s), please try again.", errorsx.Reason(err))
	}
}

// Drain stops the transport, flushes observers and closes the store. Only the
// first call does any work.
func (e *Engine) Drain() error {
	e.drainOnce.Do(func() { e.drainErr = e.drain() })
	return e.drainErr
}

func (e *Engine) drain() error {
	var errs error
	if e.transport != nil {
		errs = errors.Join(errs, e.transport.Stop())
	}
	if e.asyncObs != nil {
		errs = errors.Join(errs, e.asyncObs.Close())
		if dropped := e.asyncObs.Dropped(); dropped > 0 {
			e.logger.Warn("metrics_events_dropped", "count", dropped)
		}
	}
	if e.multiObs != nil {
		errs = errors.Join(errs, e.multiObs.Close())
	}
	if e.metricsFile != nil {
		errs = errors.Join(errs, e.metricsFile.Close())
	}
	if e.store != nil {
		errs = errors.Join(errs, e.store.Close())
	}
	if errs != nil {
		e.logger.Warn("todoagent_drain_error", "error", errs)
	}
	return errs
}

// stateRecorder forwards agent state transitions to the observers.
func stateRecorder(logger *slog.Logger, obs metrics.Observer) agent.StateListener {
	return agent.StateListenerFunc(func(ev agent.StateChange) {
		logger.Debug("agent_state_change",
			"session_id", ev.SessionID,
			"from", ev.FromState.String(),
			"to", ev.ToState.String(),
			"reason", ev.Reason)
		metrics.Emit(obs, metrics.MetricsEvent{
			Name: metrics.EventStateChange,
			Time: ev.Timestamp,
			Tags: map[string]string{
				"session_id": ev.SessionID,
				"component":  "agent",
				"from":       ev.FromState.String(),
				"to":         ev.ToState.String(),
			},
			Fields: map[string]any{"reason": ev.Reason},
		})
	})
}

func settingString(settings map[string]any, key string) string {
	v, _ := settings[key].(string)
	return v
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Session() *agent.Session { return e.session }

func (e *Engine) Store() store.Store { return e.store }

func (e *Engine) Transport() transports.Transport { return e.transport }

// Usage returns the token summary for the current session when artifacts are
// enabled.
func (e *Engine) Usage() (observers.UsageSummary, bool) {
	if e.usageObs == nil || e.session == nil {
		return observers.UsageSummary{}, false
	}
	return e.usageObs.Summary(e.session.ID())
}

// Health reports whether the engine has everything Serve needs.
func (e *Engine) Health() error {
	if e.transport == nil {
		return fmt.Errorf("missing transport")
	}
	if e.session == nil {
		return fmt.Errorf("missing session")
	}
	return nil
}
