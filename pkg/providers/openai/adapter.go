// Package openai adapts the OpenAI chat completions API to llm.LLMAdapter.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/todoagent/pkg/llm"
	"github.com/harunnryd/todoagent/pkg/resilience"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	DefaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

type Config struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	// ObservationRole is the chat role used for tool observations:
	// assistant (default), user or system.
	ObservationRole string   `mapstructure:"observation_role"`
	TimeoutMS       int      `mapstructure:"timeout_ms"`
	Temperature     *float64 `mapstructure:"temperature"`
}

type Adapter struct {
	client          openai.Client
	model           string
	observationRole llm.Role
	temperature     *float64
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api_key is required")
	}
	role, err := parseObservationRole(cfg.ObservationRole)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	timeout := defaultTimeout
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithRequestTimeout(timeout),
		// failures surface to the user; the loop never retries
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &Adapter{
		client:          openai.NewClient(opts...),
		model:           model,
		observationRole: role,
		temperature:     cfg.Temperature,
	}, nil
}

func (a *Adapter) Name() string { return "openai" }

// ToProviderFormat builds the chat completion request for ctx.
func (a *Adapter) ToProviderFormat(ctx llm.Context) (any, error) {
	return a.buildParams(ctx)
}

func (a *Adapter) buildParams(ctx llm.Context) (openai.ChatCompletionNewParams, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(ctx.Messages))
	for _, m := range ctx.Messages {
		role := m.Role
		if role == llm.RoleFunction {
			role = a.observationRole
		}
		switch role {
		case llm.RoleSystem:
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		case llm.RoleUser:
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		case llm.RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("openai: unsupported role %q", m.Role)
		}
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(a.model),
		Messages: msgs,
	}
	if ctx.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	if a.temperature != nil {
		params.Temperature = openai.Float(*a.temperature)
	}
	return params, nil
}

// FromProviderFormat accepts an *openai.ChatCompletion or openai.ChatCompletion.
func (a *Adapter) FromProviderFormat(raw any) (llm.Response, error) {
	var resp *openai.ChatCompletion
	switch v := raw.(type) {
	case *openai.ChatCompletion:
		resp = v
	case openai.ChatCompletion:
		resp = &v
	default:
		return llm.Response{}, fmt.Errorf("openai: unexpected response type %T", raw)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return llm.Response{}, errors.New("openai: no choices")
	}
	choice := resp.Choices[0]
	return llm.Response{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	params, err := a.buildParams(input)
	if err != nil {
		return llm.Response{}, err
	}
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Response{}, classifyError(err)
	}
	return a.FromProviderFormat(resp)
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: "openai", Message: apiErr.Message}
	}
	return fmt.Errorf("openai: %w", err)
}

func parseObservationRole(value string) (llm.Role, error) {
	switch llm.Role(strings.ToLower(strings.TrimSpace(value))) {
	case "", llm.RoleAssistant:
		return llm.RoleAssistant, nil
	case llm.RoleUser:
		return llm.RoleUser, nil
	case llm.RoleSystem:
		return llm.RoleSystem, nil
	default:
		return "", fmt.Errorf("openai: observation_role must be assistant, user or system, got %q", value)
	}
}

var _ llm.LLMAdapter = (*Adapter)(nil)
