package envelope

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractActionFromProse(t *testing.T) {
	text := `I will add that now. {"type":"action","function":"createTodo","input":"buy milk"} Let me know.`
	env, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, TypeAction, env.Type)
	assert.Equal(t, "createTodo", env.Function)
	assert.JSONEq(t, `"buy milk"`, string(env.Input))
}

func TestExtractFencedOutput(t *testing.T) {
	env, err := Extract("```Sure! {\"type\":\"output\",\"output\":\"Done\"}```")
	require.NoError(t, err)
	assert.Equal(t, Output("Done"), env)
}

func TestExtractJSONFence(t *testing.T) {
	env, err := Extract("```json\n{\"type\":\"plan\",\"plan\":\"list first\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, Plan("list first"), env)
}

func TestExtractTakesFirstOfSeveral(t *testing.T) {
	text := `{"type":"plan","plan":"a"} then {"type":"output","output":"b"}`
	env, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, Plan("a"), env)
}

func TestExtractSkipsNonEnvelopeBraces(t *testing.T) {
	text := `use {braces} like this {"type":"output","output":"ok"}`
	env, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, Output("ok"), env)
}

func TestExtractFailures(t *testing.T) {
	_, err := Extract("no json here")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.True(t, errors.Is(err, ErrNoJSON))

	_, err = Extract(`{"type":"output","output":`)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, `{"type":"output","output":`, perr.Raw)
}

func TestExtractJSONEscapes(t *testing.T) {
	cases := map[string]string{
		`{"type":"output","output":"see http:\/\/example.com"}`: "see http://example.com",
		`{"type":"output","output":"party \ud83c\udf89"}`: "party 🎉",
		`{"type":"output","output":"caf\u00e9"}`:         "café",
	}
	for raw, want := range cases {
		env, err := Extract(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, Output(want), env)
	}

	env, err := Parse(`{"type":"action","function":"create\/Todo","input":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, "create/Todo", env.Function)
}

func TestExtractKeepsFencesInsideStrings(t *testing.T) {
	env, err := Extract("{\"type\":\"output\",\"output\":\"Use ```go``` blocks\"}")
	require.NoError(t, err)
	assert.Equal(t, Output("Use ```go``` blocks"), env)

	env, err = Extract("```json\n{\"type\":\"output\",\"output\":\"a ``` b\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, Output("a ``` b"), env)
}
