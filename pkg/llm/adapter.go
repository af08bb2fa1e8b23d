// Package llm defines the contract between the conversation loop and a hosted
// chat model.
package llm

import "context"

// Role is the speaker of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleFunction marks tool observations. Providers map it to whatever
	// role their API accepts.
	RoleFunction Role = "function"
)

type Message struct {
	Role    Role
	Content string
}

// Context is everything sent on one model invocation. The full transcript is
// re-sent every time.
type Context struct {
	Messages []Message
	// JSONMode asks the provider to constrain output to a JSON object.
	JSONMode bool
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

type LLMAdapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	ToProviderFormat(ctx Context) (any, error)
	FromProviderFormat(raw any) (Response, error)
	Name() string
}
