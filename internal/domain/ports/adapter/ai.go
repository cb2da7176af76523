package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
	// Images are PNG attachments for multimodal models. Text-only providers ignore them.
	Images [][]byte `json:"-"`
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatOptions tunes a single completion.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
	// JSON asks providers that support it for a JSON object reply.
	JSON bool
}

// AIServiceAdapter is the port for LLM chat.
type AIServiceAdapter interface {
	// Provider names the backend, used as a metrics label.
	Provider() string

	// ChatWithUsage returns assistant text + usage as reported by the provider.
	ChatWithUsage(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, Usage, error)
}
