package agent

import (
	"errors"
	"fmt"

	"github.com/harunnryd/todoagent/pkg/envelope"
)

// ErrStepLimit aborts a turn that invoked the model too many times without
// producing an output.
var ErrStepLimit = errors.New("agent: step limit reached")

// ErrBusy is returned when Send is called while a turn is in progress.
var ErrBusy = errors.New("agent: turn already in progress")

// ProtocolError reports a well-formed envelope that the model may not send
// (user or observation).
type ProtocolError struct {
	Type envelope.Type
	Raw  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("agent: model emitted %q envelope", e.Type)
}
