// Package mock provides an in-memory line transport for tests.
package mock

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/todoagent/pkg/transports"
)

// Transport replays scripted input lines and records every written line.
// Once the script is exhausted ReadLine returns io.EOF.
type Transport struct {
	mu      sync.Mutex
	inputs  []string
	written []string
	closed  atomic.Bool
}

func New(inputs ...string) *Transport {
	return &Transport{inputs: append([]string(nil), inputs...)}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.closed.Store(true)
	return nil
}

// Push appends an input line.
func (t *Transport) Push(lines ...string) {
	t.mu.Lock()
	t.inputs = append(t.inputs, lines...)
	t.mu.Unlock()
}

func (t *Transport) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.closed.Load() {
		return "", transports.ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inputs) == 0 {
		return "", io.EOF
	}
	next := t.inputs[0]
	t.inputs = t.inputs[1:]
	return next, nil
}

func (t *Transport) WriteLine(ctx context.Context, text string) error {
	if t.closed.Load() {
		return transports.ErrClosed
	}
	t.mu.Lock()
	t.written = append(t.written, text)
	t.mu.Unlock()
	return nil
}

// Written returns a copy of the lines written so far.
func (t *Transport) Written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.written...)
}

var _ transports.Transport = (*Transport)(nil)
