// Package envelope implements the JSON unit exchanged inside chat messages:
// one conversational step tagged as user, plan, action, observation or output.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Type tags an envelope variant.
type Type string

const (
	TypeUser        Type = "user"
	TypePlan        Type = "plan"
	TypeAction      Type = "action"
	TypeObservation Type = "observation"
	TypeOutput      Type = "output"
)

// Valid reports whether t is one of the known variants.
func (t Type) Valid() bool {
	switch t {
	case TypeUser, TypePlan, TypeAction, TypeObservation, TypeOutput:
		return true
	default:
		return false
	}
}

// Envelope is a tagged union. Only the fields of the variant named by Type
// are meaningful:
//
//	user         Text
//	plan         Text
//	action       Function, Input
//	observation  Value
//	output       Text
//
// Input and Value hold compact raw JSON; nil means JSON null.
type Envelope struct {
	Type     Type
	Text     string
	Function string
	Input    json.RawMessage
	Value    json.RawMessage
}

// User builds a user envelope.
func User(text string) Envelope { return Envelope{Type: TypeUser, Text: text} }

// Plan builds a plan envelope.
func Plan(text string) Envelope { return Envelope{Type: TypePlan, Text: text} }

// Output builds an output envelope.
func Output(text string) Envelope { return Envelope{Type: TypeOutput, Text: text} }

// Action builds an action envelope. input is marshalled to JSON.
func Action(function string, input any) (Envelope, error) {
	raw, err := marshalValue(input)
	if err != nil {
		return Envelope{}, fmt.Errorf("action input: %w", err)
	}
	return Envelope{Type: TypeAction, Function: function, Input: raw}, nil
}

// Observation builds an observation envelope around a tool result.
func Observation(value any) (Envelope, error) {
	raw, err := marshalValue(value)
	if err != nil {
		return Envelope{}, fmt.Errorf("observation value: %w", err)
	}
	return Envelope{Type: TypeObservation, Value: raw}, nil
}

// String returns the wire form, or an error description if it cannot be encoded.
func (e Envelope) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("<invalid envelope: %v>", err)
	}
	return string(b)
}

type userWire struct {
	Type Type   `json:"type"`
	User string `json:"user"`
}

type planWire struct {
	Type Type   `json:"type"`
	Plan string `json:"plan"`
}

type actionWire struct {
	Type     Type            `json:"type"`
	Function string          `json:"function"`
	Input    json.RawMessage `json:"input"`
}

type observationWire struct {
	Type        Type            `json:"type"`
	Observation json.RawMessage `json:"observation"`
}

type outputWire struct {
	Type   Type   `json:"type"`
	Output string `json:"output"`
}

// MarshalJSON emits exactly the fields of the envelope's variant.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypeUser:
		return json.Marshal(userWire{Type: e.Type, User: e.Text})
	case TypePlan:
		return json.Marshal(planWire{Type: e.Type, Plan: e.Text})
	case TypeAction:
		return json.Marshal(actionWire{Type: e.Type, Function: e.Function, Input: orNull(e.Input)})
	case TypeObservation:
		return json.Marshal(observationWire{Type: e.Type, Observation: orNull(e.Value)})
	case TypeOutput:
		return json.Marshal(outputWire{Type: e.Type, Output: e.Text})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
}

type anyWire struct {
	Type        Type            `json:"type"`
	User        json.RawMessage `json:"user"`
	Plan        json.RawMessage `json:"plan"`
	Function    json.RawMessage `json:"function"`
	Input       json.RawMessage `json:"input"`
	Observation json.RawMessage `json:"observation"`
	Output      json.RawMessage `json:"output"`
}

// UnmarshalJSON decodes any variant. Text fields tolerate non-string JSON
// (models sometimes answer with a number or object); such values are kept as
// compact JSON text.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w anyWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}
	out := Envelope{Type: w.Type}
	var err error
	switch w.Type {
	case TypeUser:
		out.Text, err = textField(w.User)
	case TypePlan:
		out.Text, err = textField(w.Plan)
	case TypeOutput:
		out.Text, err = textField(w.Output)
	case TypeAction:
		out.Function, err = textField(w.Function)
		if err == nil && out.Function == "" {
			err = ErrMissingFunction
		}
		out.Input, err = firstErr(err, w.Input)
	case TypeObservation:
		out.Value, err = firstErr(nil, w.Observation)
	}
	if err != nil {
		return err
	}
	*e = out
	return nil
}

func firstErr(prev error, raw json.RawMessage) (json.RawMessage, error) {
	if prev != nil {
		return nil, prev
	}
	return compact(raw)
}

func textField(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	c, err := compact(raw)
	if err != nil {
		return "", err
	}
	return string(c), nil
}

func marshalValue(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return compact(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return compact(b)
}

// compact normalizes raw JSON so equal values compare equal byte-wise.
// JSON null becomes a nil RawMessage.
func compact(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
