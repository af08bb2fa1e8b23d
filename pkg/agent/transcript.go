package agent

import (
	"github.com/harunnryd/todoagent/pkg/envelope"
	"github.com/harunnryd/todoagent/pkg/llm"
)

// Transcript is the append-only message log of one session. The first entry
// is always the system prompt.
type Transcript struct {
	messages []llm.Message
}

func NewTranscript(systemPrompt string) *Transcript {
	return &Transcript{messages: []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}}
}

// Messages returns a copy of the log.
func (t *Transcript) Messages() []llm.Message {
	out := make([]llm.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int { return len(t.messages) }

func (t *Transcript) appendUser(text string) {
	t.messages = append(t.messages, llm.Message{Role: llm.RoleUser, Content: envelope.User(text).String()})
}

func (t *Transcript) appendAssistant(raw string) {
	t.messages = append(t.messages, llm.Message{Role: llm.RoleAssistant, Content: raw})
}

// appendExchange commits a model action together with its observation.
func (t *Transcript) appendExchange(actionRaw string, observation envelope.Envelope) {
	t.messages = append(t.messages,
		llm.Message{Role: llm.RoleAssistant, Content: actionRaw},
		llm.Message{Role: llm.RoleFunction, Content: observation.String()},
	)
}
