package llm

import (
	"context"
	"encoding/json"
)

// Tool describes a callable function for the system prompt.
type Tool struct {
	Name string
	// Signature is the human-readable call shape, e.g. "createTodo(todo: string): number".
	Signature   string
	Description string
	Schema      any
}

// ToolRegistry resolves and runs tools requested by the model.
type ToolRegistry interface {
	Tools() []Tool
	HandleTool(ctx context.Context, name string, input json.RawMessage) (any, error)
}
