package todoagent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/todoagent/pkg/errorsx"
	"github.com/harunnryd/todoagent/pkg/logging"
	"github.com/harunnryd/todoagent/pkg/providers/mock"
	"github.com/harunnryd/todoagent/pkg/resilience"
	"github.com/harunnryd/todoagent/pkg/store"
	"github.com/harunnryd/todoagent/pkg/transports/console"
	mocktransport "github.com/harunnryd/todoagent/pkg/transports/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Environment: "test",
		LogLevel:    "debug",
		Vendors:     VendorsConfig{LLM: VendorConfig{Provider: "mock"}},
		Store:       StoreConfig{Driver: "memory"},
		Agent:       AgentConfig{MaxSteps: 8, ToolErrorPolicy: "observe"},
		Privacy:     PrivacyConfig{RedactPII: true},
		Observability: ObservabilityConfig{
			SampleRate: 1,
		},
	}
}

func newTestEngine(t *testing.T, cfg Config, responses []string, inputs ...string) (*Engine, *mocktransport.Transport, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	tr := mocktransport.New(inputs...)
	e, err := NewEngine(context.Background(), EngineOptions{
		Config:    cfg,
		Transport: tr,
		Logger:    logging.Discard(),
		Store:     s,
		LLM:       mock.NewLLMAdapter(mock.LLMConfig{Responses: responses}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Drain() })
	return e, tr, s
}

func TestServeAddsTodoAndRepliesOnce(t *testing.T) {
	e, tr, s := newTestEngine(t, testConfig(), []string{
		`{"type":"plan","plan":"create it"}`,
		`{"type":"action","function":"createTodo","input":{"todo":"buy milk"}}`,
		`{"type":"output","output":"Added buy milk with id 1"}`,
	}, "   ", "Add a task for buying milk")

	require.NoError(t, e.Serve(context.Background()))

	assert.Equal(t, []string{"Added buy milk with id 1"}, tr.Written())
	all, err := s.SelectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "buy milk", all[0].Text)
	assert.Equal(t, 6, e.Session().Transcript().Len())
}

func TestServeReportsFailedTurnAndContinues(t *testing.T) {
	e, tr, _ := newTestEngine(t, testConfig(), []string{
		"I am not JSON at all",
		`{"type":"output","output":"You have no todos"}`,
	}, "hello", "list my todos")

	require.NoError(t, e.Serve(context.Background()))

	written := tr.Written()
	require.Len(t, written, 2)
	assert.Equal(t, "I could not understand the model's reply, please try again.", written[0])
	assert.Equal(t, "You have no todos", written[1])
}

func TestServeStopsOnCancelledContext(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig(), nil, "hello")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Serve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailureNotice(t *testing.T) {
	cases := map[string]error{
		"The model is busy right now, please try again in a moment.": errorsx.Wrap(resilience.RateLimitError{Provider: "openai"}, errorsx.ReasonLLMRateLimit),
		"That took too many steps, please rephrase the request.":     errorsx.Wrap(errors.New("x"), errorsx.ReasonStepLimit),
		"The todo store is unavailable, please try again.":           errorsx.Wrap(errors.New("x"), errorsx.ReasonStore),
		"Something went wrong (llm_generate), please try again.":     errorsx.Wrap(errors.New("x"), errorsx.ReasonLLMGenerate),
	}
	for want, err := range cases {
		assert.Equal(t, want, FailureNotice(err))
	}
}

func TestEngineWritesArtifactsAndMetrics(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Observability.ArtifactsDir = filepath.Join(dir, "artifacts")
	cfg.Observability.MetricsFile = filepath.Join(dir, "metrics", "events.jsonl")
	cfg.Observability.AsyncBuffer = 64

	e, _, _ := newTestEngine(t, cfg, []string{
		`{"type":"action","function":"getAllTodos","input":""}`,
		`{"type":"output","output":"Nothing yet"}`,
	}, "what do I have?")
	require.NoError(t, e.Serve(context.Background()))
	require.NoError(t, e.Drain())
	require.NoError(t, e.Drain())

	summary, ok := e.Usage()
	require.True(t, ok)
	assert.Equal(t, 1, summary.Turns)
	assert.Equal(t, map[string]int{"getAllTodos": 1}, summary.ToolCalls)

	id := e.Session().ID()
	_, err := os.Stat(filepath.Join(cfg.Observability.ArtifactsDir, id+".timeline.jsonl"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Observability.ArtifactsDir, id+".usage.json"))
	require.NoError(t, err)

	f, err := os.Open(cfg.Observability.MetricsFile)
	require.NoError(t, err)
	defer f.Close()
	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "turn_started")
	assert.Contains(t, names, "tool_call")
	assert.Contains(t, names, "turn_completed")
}

func TestNewEngineBuildsFromRegistry(t *testing.T) {
	cfg := testConfig()
	cfg.Vendors.LLM.Settings = map[string]any{"responses": []any{`{"type":"output","output":"ok"}`}}
	tr := mocktransport.New("hi")
	e, err := NewEngine(context.Background(), EngineOptions{Config: cfg, Transport: tr, Logger: logging.Discard()})
	require.NoError(t, err)
	defer e.Drain()

	require.NoError(t, e.Health())
	require.NoError(t, e.Serve(context.Background()))
	assert.Equal(t, []string{"ok"}, tr.Written())
	assert.IsType(t, &store.MemoryStore{}, e.Store())
}

func TestServeRefusesIncompleteEngine(t *testing.T) {
	err := (&Engine{}).Serve(context.Background())
	require.Error(t, err)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonConfig))
}

func TestNewEngineFailsOnBadProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Vendors.LLM.Provider = "nope"
	_, err := NewEngine(context.Background(), EngineOptions{Config: cfg, Transport: mocktransport.New(), Logger: logging.Discard()})
	require.Error(t, err)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonConfig))
}

func TestListTodos(t *testing.T) {
	cfg := testConfig()
	cfg.Store = StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "todos.db")}
	s, err := store.NewSQLiteStore(context.Background(), cfg.Store.DSN)
	require.NoError(t, err)
	_, err = s.Insert(context.Background(), "walk dog")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	all, err := ListTodos(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "walk dog", all[0].Text)
}

func TestServeSurvivesOversizedLine(t *testing.T) {
	cfg := testConfig()
	cfg.Vendors.LLM.Settings = map[string]any{"responses": []any{`{"type":"output","output":"ok"}`}}
	var out strings.Builder
	tr := console.New(console.Config{
		In:      strings.NewReader(strings.Repeat("z", 32) + "\nhi\n"),
		Out:     &out,
		Prompt:  "> ",
		MaxLine: 8,
	})
	e, err := NewEngine(context.Background(), EngineOptions{Config: cfg, Transport: tr, Logger: logging.Discard()})
	require.NoError(t, err)
	defer e.Drain()

	require.NoError(t, e.Serve(context.Background()))
	assert.Equal(t, "> "+LineTooLongNotice+"\n> ok\n> ", out.String())
}
