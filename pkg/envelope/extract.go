package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoJSON          = errors.New("envelope: no json object in text")
	ErrUnknownType     = errors.New("envelope: unknown type")
	ErrMissingFunction = errors.New("envelope: action without function")
)

// ParseError reports model text that did not contain a usable envelope.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse envelope: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes text that is expected to be exactly one envelope.
func Parse(text string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return Envelope{}, &ParseError{Raw: text, Err: err}
	}
	return env, nil
}

// Extract finds the first envelope embedded in free-form model output.
// The raw text is tried first: the outermost brace span, then every '{' in
// order. Only when that fails and a code fence wraps the whole reply is the
// fence removed and the search repeated on its body.
func Extract(text string) (Envelope, error) {
	env, err := scan(text)
	if err == nil {
		return env, nil
	}
	if body, ok := unwrapFence(text); ok {
		if env, ferr := scan(body); ferr == nil {
			return env, nil
		}
	}
	return Envelope{}, &ParseError{Raw: text, Err: err}
}

func scan(text string) (Envelope, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return Envelope{}, ErrNoJSON
	}

	var lastErr error
	if end := strings.LastIndex(text, "}"); end > start {
		var env Envelope
		if err := json.Unmarshal([]byte(text[start:end+1]), &env); err == nil {
			return env, nil
		} else {
			lastErr = err
		}
	}

	for i := start; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			lastErr = err
			continue
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			lastErr = err
			continue
		}
		return env, nil
	}
	if lastErr == nil {
		lastErr = ErrNoJSON
	}
	return Envelope{}, lastErr
}

// unwrapFence returns the body of a reply that starts and ends with a code
// fence. An info string such as "json" on the opening fence is dropped.
func unwrapFence(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 6 || !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") {
		return "", false
	}
	body := text[3 : len(text)-3]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "{") {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
		body = strings.TrimPrefix(body, "JSON")
	}
	return strings.TrimSpace(body), true
}
