package engine

import "encoding/json"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type (
	// Conversation is one exchange turn in a thread's history. Assistant
	// turns may interleave visible text, reasoning and tool actions.
	Conversation struct {
		Role     Role     `json:"role"`
		Text     string   `json:"text,omitempty"`
		Thinking string   `json:"thinking,omitempty"`
		Actions  []Action `json:"actions,omitempty"`
	}

	// Action is one tool invocation made during an assistant turn, paired
	// with the result the tool produced.
	Action struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
		Result    json.RawMessage `json:"result,omitempty"`
	}
)
