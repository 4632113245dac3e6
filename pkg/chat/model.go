package chat

import "context"

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn as exchanged with the client.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Valid reports whether m has a known role and some content.
func (m Message) Valid() bool {
	return (m.Role == RoleUser || m.Role == RoleAssistant) && m.Content != ""
}

// Completion is a model reply with its token usage.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Model sends a conversation to a language model.
type Model interface {
	Complete(ctx context.Context, system string, messages []Message) (Completion, error)
}
