package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Provider is a hosted language model that answers a single, non-streaming chat turn.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Options configure one provider instance. APIKey is already resolved: the caller's
// override if present, otherwise the server default.
type Options struct {
	Model       string
	APIKey      string
	Temperature float32
}
