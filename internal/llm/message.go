package llm

import "time"

// Roles a message can carry. Backends that use a different vocabulary
// (Gemini says "model" instead of "assistant") relabel at the wire level.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation. Messages are immutable once
// created; the ordered sequence forms the conversation and the order is
// preserved across backend calls.
type Message struct {
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Timestamp float64 `json:"timestamp"`
}

// NewMessage stamps the message with the current time in Unix seconds.
func NewMessage(role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: float64(time.Now().UnixMilli()) / 1000,
	}
}
