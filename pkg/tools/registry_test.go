package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/harunnryd/todoagent/pkg/errorsx"
	"github.com/harunnryd/todoagent/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) (*Registry, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	s.Seed(1, "buy milk")
	s.Seed(2, "walk dog")
	return NewRegistry(s), s
}

func TestToolsDeclared(t *testing.T) {
	r, _ := seeded(t)
	var names []string
	for _, tool := range r.Tools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Signature)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{GetAllTodos, CreateTodo, SearchTodo, DeleteByID}, names)
}

func TestUnknownToolLeavesStoreUntouched(t *testing.T) {
	r, s := seeded(t)
	_, err := r.HandleTool(context.Background(), "wipeAll", json.RawMessage(`null`))
	require.Error(t, err)

	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "wipeAll", unknown.Name)
	assert.True(t, errors.Is(err, ErrUnknownTool))
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonUnknownTool))

	all, err := s.SelectAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetAllTodosIgnoresInput(t *testing.T) {
	r, _ := seeded(t)
	out, err := r.HandleTool(context.Background(), GetAllTodos, json.RawMessage(`{"whatever":1}`))
	require.NoError(t, err)
	records := out.([]store.Record)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
}

func TestCreateTodoInputShapes(t *testing.T) {
	for _, input := range []string{`"buy bread"`, `{"todo":"buy bread"}`, `{"text":"buy bread"}`} {
		r, s := seeded(t)
		out, err := r.HandleTool(context.Background(), CreateTodo, json.RawMessage(input))
		require.NoError(t, err, input)
		assert.Equal(t, int64(3), out)

		got, err := s.SelectWhere(context.Background(), "bread")
		require.NoError(t, err)
		require.Len(t, got, 1, input)
	}
}

func TestCreateTodoRejectsEmpty(t *testing.T) {
	r, s := seeded(t)
	for _, input := range []string{`""`, `null`, `{"other":"x"}`, `{"todo":"  "}`} {
		_, err := r.HandleTool(context.Background(), CreateTodo, json.RawMessage(input))
		var argErr *ArgumentError
		require.ErrorAs(t, err, &argErr, input)
		assert.Equal(t, CreateTodo, argErr.Tool)
		assert.True(t, errorsx.HasReason(err, errorsx.ReasonToolArgs))
	}
	all, _ := s.SelectAll(context.Background())
	assert.Len(t, all, 2)
}

func TestSearchTodo(t *testing.T) {
	r, _ := seeded(t)
	for _, input := range []string{`"milk"`, `{"search":"milk"}`, `{"query":"MILK"}`} {
		out, err := r.HandleTool(context.Background(), SearchTodo, json.RawMessage(input))
		require.NoError(t, err)
		records := out.([]store.Record)
		require.Len(t, records, 1, input)
		assert.Equal(t, int64(1), records[0].ID)
	}
}

func TestDeleteByIDInputShapes(t *testing.T) {
	for _, input := range []string{`2`, `"2"`, `{"id":2}`, `{"id":"2"}`} {
		r, s := seeded(t)
		out, err := r.HandleTool(context.Background(), DeleteByID, json.RawMessage(input))
		require.NoError(t, err, input)
		assert.Nil(t, out)
		all, _ := s.SelectAll(context.Background())
		require.Len(t, all, 1, input)
		assert.Equal(t, "buy milk", all[0].Text)
	}
}

func TestDeleteByIDMissingIsNoop(t *testing.T) {
	r, s := seeded(t)
	_, err := r.HandleTool(context.Background(), DeleteByID, json.RawMessage(`42`))
	require.NoError(t, err)
	all, _ := s.SelectAll(context.Background())
	assert.Len(t, all, 2)
}

func TestDeleteByIDRejectsGarbage(t *testing.T) {
	for _, input := range []string{`"two"`, `null`, `{"id":[1]}`, `true`, `{"id":false}`, `1.9`, `"1.5"`} {
		r, s := seeded(t)
		_, err := r.HandleTool(context.Background(), DeleteByID, json.RawMessage(input))
		var argErr *ArgumentError
		assert.ErrorAs(t, err, &argErr, input)
		all, _ := s.SelectAll(context.Background())
		assert.Len(t, all, 2, input)
	}
}

func TestDeleteByIDAcceptsWholeFloat(t *testing.T) {
	r, s := seeded(t)
	_, err := r.HandleTool(context.Background(), DeleteByID, json.RawMessage(`2.0`))
	require.NoError(t, err)
	all, _ := s.SelectAll(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, int64(1), all[0].ID)
}

func TestTextToolsRejectNonScalars(t *testing.T) {
	for _, tool := range []string{CreateTodo, SearchTodo} {
		for _, input := range []string{`true`, `{"todo":false}`, `["milk"]`, `{"search":{"q":"x"}}`} {
			r, s := seeded(t)
			_, err := r.HandleTool(context.Background(), tool, json.RawMessage(input))
			var argErr *ArgumentError
			assert.ErrorAs(t, err, &argErr, tool+" "+input)
			all, _ := s.SelectAll(context.Background())
			assert.Len(t, all, 2, input)
		}
	}
}

type failingStore struct{ store.Store }

func (failingStore) Insert(context.Context, string) (int64, error) {
	return 0, errorsx.Wrap(errors.New("disk full"), errorsx.ReasonStore)
}

func TestStoreErrorsPropagate(t *testing.T) {
	r := NewRegistry(failingStore{Store: store.NewMemoryStore()})
	_, err := r.HandleTool(context.Background(), CreateTodo, json.RawMessage(`"x"`))
	require.Error(t, err)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonStore))
}
