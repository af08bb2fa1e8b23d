// Package tools exposes the to-do store to the model as a closed set of
// named functions.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/todoagent/pkg/errorsx"
	"github.com/harunnryd/todoagent/pkg/llm"
	"github.com/harunnryd/todoagent/pkg/logging"
	"github.com/harunnryd/todoagent/pkg/store"
)

const (
	GetAllTodos = "getAllTodos"
	CreateTodo  = "createTodo"
	SearchTodo  = "searchTodo"
	DeleteByID  = "deleteById"
)

// Handler runs one tool against raw JSON input and returns a JSON-encodable result.
type Handler func(ctx context.Context, input json.RawMessage) (any, error)

type Registry struct {
	store    store.Store
	tools    []llm.Tool
	handlers map[string]Handler
	logger   *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "tools")
		}
	}
}

// NewRegistry builds the table over s. It panics if a declared tool has no
// handler, which can only be a programming error.
func NewRegistry(s store.Store, opts ...Option) *Registry {
	r := &Registry{store: s, logger: logging.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	r.tools = []llm.Tool{
		{
			Name:        GetAllTodos,
			Signature:   "getAllTodos(): Todo[]",
			Description: "Returns every todo in the database, ordered by id.",
			Schema:      map[string]any{"type": "null"},
		},
		{
			Name:        CreateTodo,
			Signature:   "createTodo(todo: string): number",
			Description: "Creates a new todo with the given text and returns its id.",
			Schema:      map[string]any{"type": "string"},
		},
		{
			Name:        SearchTodo,
			Signature:   "searchTodo(search: string): Todo[]",
			Description: "Returns the todos whose text contains the search string (case-insensitive).",
			Schema:      map[string]any{"type": "string"},
		},
		{
			Name:        DeleteByID,
			Signature:   "deleteById(id: number): null",
			Description: "Deletes the todo with the given id. Deleting a missing id does nothing.",
			Schema:      map[string]any{"type": "integer"},
		},
	}
	r.handlers = map[string]Handler{
		GetAllTodos: r.getAllTodos,
		CreateTodo:  r.createTodo,
		SearchTodo:  r.searchTodo,
		DeleteByID:  r.deleteByID,
	}
	for _, t := range r.tools {
		if r.handlers[t.Name] == nil {
			panic(fmt.Sprintf("tools: no handler for %q", t.Name))
		}
	}
	if len(r.handlers) != len(r.tools) {
		panic("tools: handler without declaration")
	}
	return r
}

// Tools returns the declarations in a stable order.
func (r *Registry) Tools() []llm.Tool {
	out := make([]llm.Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Lookup resolves name. Unknown names yield *UnknownToolError.
func (r *Registry) Lookup(name string) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, errorsx.Wrap(&UnknownToolError{Name: name}, errorsx.ReasonUnknownTool)
	}
	return h, nil
}

// HandleTool looks up name and runs it.
func (r *Registry) HandleTool(ctx context.Context, name string, input json.RawMessage) (any, error) {
	h, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("tool_dispatched", "tool", name, "input", string(input))
	return h(ctx, input)
}

func (r *Registry) getAllTodos(ctx context.Context, _ json.RawMessage) (any, error) {
	return r.store.SelectAll(ctx)
}

func (r *Registry) createTodo(ctx context.Context, input json.RawMessage) (any, error) {
	text, err := stringArg(input, "todo", "text")
	if err != nil {
		return nil, argError(CreateTodo, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, argError(CreateTodo, errMissingInput)
	}
	return r.store.Insert(ctx, text)
}

func (r *Registry) searchTodo(ctx context.Context, input json.RawMessage) (any, error) {
	pattern, err := stringArg(input, "search", "pattern", "query")
	if err != nil {
		return nil, argError(SearchTodo, err)
	}
	return r.store.SelectWhere(ctx, pattern)
}

func (r *Registry) deleteByID(ctx context.Context, input json.RawMessage) (any, error) {
	id, err := idArg(input)
	if err != nil {
		return nil, argError(DeleteByID, err)
	}
	if err := r.store.DeleteWhere(ctx, id); err != nil {
		return nil, err
	}
	return nil, nil
}

func argError(tool string, err error) error {
	return errorsx.Wrap(&ArgumentError{Tool: tool, Err: err}, errorsx.ReasonToolArgs)
}

var _ llm.ToolRegistry = (*Registry)(nil)
