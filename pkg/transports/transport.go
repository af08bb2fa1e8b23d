// Package transports defines the line-based boundary between the user and a session.
package transports

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by ReadLine and WriteLine after Stop.
	ErrClosed = errors.New("transport closed")
	// ErrLineTooLong reports one oversized input line. The transport stays
	// usable and the next ReadLine returns the following line.
	ErrLineTooLong = errors.New("input line too long")
)

// Transport exchanges whole lines of text with the user. ReadLine returns
// io.EOF when the input ends.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	ReadLine(ctx context.Context) (string, error)
	WriteLine(ctx context.Context, text string) error
}

// ReadyReporter allows transports to expose readiness metadata.
// Implementations are optional and used for informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
