package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/todoagent/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedResponsesInOrder(t *testing.T) {
	a := NewLLMAdapter(LLMConfig{Responses: []string{"one", "two"}})
	ctx := context.Background()
	in := llm.Context{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, JSONMode: true}

	r, err := a.Generate(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "one", r.Text)
	r, err = a.Generate(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "two", r.Text)

	_, err = a.Generate(ctx, in)
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.Equal(t, 3, a.Calls())
	assert.True(t, a.Requests()[0].JSONMode)
}

func TestScriptedErrors(t *testing.T) {
	boom := errors.New("boom")
	a := NewLLMAdapter(LLMConfig{Responses: []string{"", "ok"}, Errors: []error{boom}})
	_, err := a.Generate(context.Background(), llm.Context{})
	assert.ErrorIs(t, err, boom)
	r, err := a.Generate(context.Background(), llm.Context{})
	require.NoError(t, err)
	assert.Equal(t, "ok", r.Text)
}

func TestRepeatReplaysLast(t *testing.T) {
	a := NewLLMAdapter(LLMConfig{Responses: []string{"a", "b"}, Repeat: true})
	for i := 0; i < 4; i++ {
		_, err := a.Generate(context.Background(), llm.Context{})
		require.NoError(t, err)
	}
	r, err := a.Generate(context.Background(), llm.Context{})
	require.NoError(t, err)
	assert.Equal(t, "b", r.Text)
}

func TestRequestsAreSnapshots(t *testing.T) {
	a := NewLLMAdapter(LLMConfig{Responses: []string{"x"}})
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "first"}}
	_, err := a.Generate(context.Background(), llm.Context{Messages: msgs})
	require.NoError(t, err)
	msgs[0].Content = "mutated"
	assert.Equal(t, "first", a.Requests()[0].Messages[0].Content)
}
