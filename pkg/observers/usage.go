package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/todoagent/pkg/metrics"
)

// UsageSummary is the per-session usage record written on Close.
type UsageSummary struct {
	SessionID        string         `json:"session_id"`
	Provider         string         `json:"provider,omitempty"`
	Turns            int            `json:"turns"`
	FailedTurns      int            `json:"failed_turns"`
	LLMCalls         int            `json:"llm_calls"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	ToolCalls        map[string]int `json:"tool_calls"`
	RecordedAtUTC    string         `json:"recorded_at_utc"`
}

// UsageObserver accumulates token and tool usage per session and writes
// <session>.usage.json into dir on Close.
type UsageObserver struct {
	dir   string
	mu    sync.Mutex
	stats map[string]*UsageSummary
}

func NewUsageObserver(dir string) *UsageObserver {
	return &UsageObserver{dir: dir, stats: make(map[string]*UsageSummary)}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	sessionID := sessionOf(ev)
	if sessionID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	stat := o.stats[sessionID]
	if stat == nil {
		stat = &UsageSummary{SessionID: sessionID, ToolCalls: map[string]int{}}
		o.stats[sessionID] = stat
	}
	if p := ev.Tags["provider"]; p != "" {
		stat.Provider = p
	}
	switch ev.Name {
	case metrics.EventTurnCompleted:
		stat.Turns++
	case metrics.EventTurnFailed:
		stat.Turns++
		stat.FailedTurns++
	case metrics.EventLLMResponse, metrics.EventLLMError:
		stat.LLMCalls++
	case metrics.EventLLMUsage:
		stat.TotalTokens += int(ev.Value)
		stat.PromptTokens += intField(ev.Fields, "prompt_tokens")
		stat.CompletionTokens += intField(ev.Fields, "completion_tokens")
	case metrics.EventToolCall, metrics.EventToolError:
		if tool, _ := ev.Fields["tool"].(string); tool != "" {
			stat.ToolCalls[tool]++
		}
	}
}

// Summary returns a copy of the usage recorded for sessionID.
func (o *UsageObserver) Summary(sessionID string) (UsageSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	stat, ok := o.stats[sessionID]
	if !ok {
		return UsageSummary{}, false
	}
	out := *stat
	out.ToolCalls = make(map[string]int, len(stat.ToolCalls))
	for k, v := range stat.ToolCalls {
		out.ToolCalls[k] = v
	}
	return out, true
}

func (o *UsageObserver) Close() error {
	if strings.TrimSpace(o.dir) == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.stats) == 0 {
		return nil
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	var errOut error
	for id, stat := range o.stats {
		stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
		b, err := json.MarshalIndent(stat, "", "  ")
		if err != nil {
			errOut = errors.Join(errOut, err)
			continue
		}
		path := filepath.Join(o.dir, sanitizeID(id)+".usage.json")
		if err := os.WriteFile(path, b, 0o644); err != nil {
			errOut = errors.Join(errOut, err)
		}
	}
	return errOut
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

var _ metrics.Observer = (*UsageObserver)(nil)
