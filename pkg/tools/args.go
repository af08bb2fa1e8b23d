package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/harunnryd/todoagent/pkg/configutil"
)

var (
	errMissingInput = errors.New("input is required")
	errNotText      = errors.New("input must be a string or a number")
)

// decodeInput turns raw JSON into a generic value. JSON null and empty input
// yield nil.
func decodeInput(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// stringArg accepts a bare string or an object carrying one of keys.
func stringArg(raw json.RawMessage, keys ...string) (string, error) {
	v, err := decodeInput(raw)
	if err != nil {
		return "", err
	}
	if obj, ok := v.(map[string]any); ok {
		v = pick(obj, keys...)
	}
	switch v.(type) {
	case nil:
		return "", errMissingInput
	case string, json.Number:
	default:
		return "", errNotText
	}
	var out string
	if err := configutil.Decode(jsonScalar(v), &out); err != nil {
		return "", err
	}
	return out, nil
}

// idArg accepts a number, a numeric string or an object with an id key.
func idArg(raw json.RawMessage) (int64, error) {
	v, err := decodeInput(raw)
	if err != nil {
		return 0, err
	}
	if obj, ok := v.(map[string]any); ok {
		v = pick(obj, "id", "todo_id", "todoId")
	}
	switch x := v.(type) {
	case nil:
		return 0, errMissingInput
	case string:
		v = strings.TrimSpace(x)
	case json.Number:
		if _, err := x.Int64(); err != nil {
			f, ferr := x.Float64()
			if ferr != nil || f != math.Trunc(f) {
				return 0, fmt.Errorf("id must be an integer, got %s", x)
			}
		}
	default:
		return 0, fmt.Errorf("id must be an integer, got %T", v)
	}
	var id int64
	if err := configutil.Decode(jsonScalar(v), &id); err != nil {
		return 0, fmt.Errorf("id must be an integer: %w", err)
	}
	return id, nil
}

func pick(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return nil
}

// jsonScalar converts json.Number to a type mapstructure understands.
func jsonScalar(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
