package agent

import (
	"strings"

	"github.com/harunnryd/todoagent/pkg/llm"
)

const defaultBasePrompt = `You are an AI To-Do List Assistant working in START, PLAN, ACTION, OBSERVATION and OUTPUT steps.
Wait for the user prompt and first PLAN using the available tools.
After planning, take the ACTION with the appropriate tool and wait for the OBSERVATION.
Once you have the observation, answer with an OUTPUT based on the user prompt and the observations.

You can manage tasks by adding, viewing, searching and deleting them.
Reply with exactly one JSON object per message, in one of these forms:
{"type": "plan", "plan": "<what you will do>"}
{"type": "action", "function": "<tool name>", "input": <tool input>}
{"type": "output", "output": "<answer for the user>"}
Never write "user" or "observation" objects yourself.`

const schemaSection = `Todo DB Schema:
id: Int and Primary Key
text: String
created_at: Date Time
updated_at: Date Time`

const exampleSection = `Example:
START
{"type": "user", "user": "Add a task for shopping groceries"}
{"type": "plan", "plan": "I will try to get more context on what the user needs to shop for."}
{"type": "output", "output": "Can you tell me which items you want to shop for?"}
{"type": "user", "user": "I want to shop for milk, bread and eggs"}
{"type": "plan", "plan": "I will use createTodo to create a new todo in the database."}
{"type": "action", "function": "createTodo", "input": "Shopping groceries with milk, bread and eggs"}
{"type": "observation", "observation": 2}
{"type": "output", "output": "Your todo has been added successfully with id 2"}`

// PromptConfig customizes the system prompt. Empty fields keep the defaults.
type PromptConfig struct {
	BasePrompt string
	Persona    string
	Style      string
}

// BuildSystemPrompt renders the protocol description and the tool list.
func BuildSystemPrompt(tools []llm.Tool, cfg PromptConfig) string {
	var b strings.Builder
	base := strings.TrimSpace(cfg.BasePrompt)
	if base == "" {
		base = defaultBasePrompt
	}
	b.WriteString(base)
	if p := strings.TrimSpace(cfg.Persona); p != "" {
		b.WriteString("\n\nPersona: ")
		b.WriteString(p)
	}
	if s := strings.TrimSpace(cfg.Style); s != "" {
		b.WriteString("\n\nStyle: ")
		b.WriteString(s)
	}
	b.WriteString("\n\n")
	b.WriteString(schemaSection)
	b.WriteString("\n\nAvailable tools:\n")
	for _, t := range tools {
		b.WriteString("- ")
		if t.Signature != "" {
			b.WriteString(t.Signature)
		} else {
			b.WriteString(t.Name)
		}
		if t.Description != "" {
			b.WriteString(" : ")
			b.WriteString(t.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(exampleSection)
	return b.String()
}
