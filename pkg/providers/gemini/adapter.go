// Package gemini adapts Google's Gemini API (google.golang.org/genai) to
// llm.LLMAdapter.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/harunnryd/todoagent/pkg/llm"
	"github.com/harunnryd/todoagent/pkg/resilience"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey      string   `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	Temperature *float64 `mapstructure:"temperature"`
}

// ContinuePrompt is sent as a user turn when the history ends on the model.
const ContinuePrompt = "Continue conversation"

type Adapter struct {
	client      *genai.Client
	model       string
	temperature *float32
}

// Request is the provider form of one invocation.
type Request struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("gemini: api_key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	a := newAdapter(cfg)
	a.client = client
	return a, nil
}

func newAdapter(cfg Config) *Adapter {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	a := &Adapter{model: model}
	if cfg.Temperature != nil {
		t := float32(*cfg.Temperature)
		a.temperature = &t
	}
	return a
}

func (a *Adapter) Name() string { return "gemini" }

// ToProviderFormat returns a Request. System messages move to the system
// instruction; consecutive messages of the same role are merged into one
// content with several parts.
func (a *Adapter) ToProviderFormat(ctx llm.Context) (any, error) {
	return a.buildRequest(ctx)
}

func (a *Adapter) buildRequest(ctx llm.Context) (Request, error) {
	var (
		system   []*genai.Part
		contents []*genai.Content
	)
	for _, m := range ctx.Messages {
		var role genai.Role
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, genai.NewPartFromText(m.Content))
			continue
		case llm.RoleAssistant:
			role = genai.RoleModel
		case llm.RoleUser, llm.RoleFunction:
			// the API only knows user and model turns
			role = genai.RoleUser
		default:
			return Request{}, fmt.Errorf("gemini: unsupported role %q", m.Role)
		}
		if n := len(contents); n > 0 && contents[n-1].Role == string(role) {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.NewPartFromText(m.Content))
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	// multi-turn requests must end on a user turn
	if n := len(contents); n > 0 && contents[n-1].Role == string(genai.RoleModel) {
		contents = append(contents, genai.NewContentFromText(ContinuePrompt, genai.RoleUser))
	}

	cfg := &genai.GenerateContentConfig{Temperature: a.temperature}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Role: string(genai.RoleUser), Parts: system}
	}
	if ctx.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}
	return Request{Model: a.model, Contents: contents, Config: cfg}, nil
}

func (a *Adapter) FromProviderFormat(raw any) (llm.Response, error) {
	res, ok := raw.(*genai.GenerateContentResponse)
	if !ok || res == nil {
		return llm.Response{}, fmt.Errorf("gemini: unexpected response type %T", raw)
	}
	if len(res.Candidates) == 0 {
		return llm.Response{}, errors.New("gemini: no candidates")
	}
	out := llm.Response{
		Text:         res.Text(),
		FinishReason: string(res.Candidates[0].FinishReason),
	}
	if u := res.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	if a.client == nil {
		return llm.Response{}, errors.New("gemini: client not initialized")
	}
	req, err := a.buildRequest(input)
	if err != nil {
		return llm.Response{}, err
	}
	res, err := a.client.Models.GenerateContent(ctx, req.Model, req.Contents, req.Config)
	if err != nil {
		return llm.Response{}, classifyError(err)
	}
	return a.FromProviderFormat(res)
}

func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: "gemini", Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: "gemini", Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini: %w", err)
}

var _ llm.LLMAdapter = (*Adapter)(nil)
