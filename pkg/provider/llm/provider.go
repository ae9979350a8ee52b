// Package llm defines the chat completion provider interface shared by all
// language model backends.
package llm

import "context"

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message. The JSON field order is stable and is
// also used by the session package to measure serialized history size.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a chat completion request.
type CompletionRequest struct {
	// Messages is the conversation history, oldest first.
	Messages []Message
	// Temperature controls sampling randomness. Zero means provider default.
	Temperature float64
	// MaxTokens caps the length of the generated reply. Zero means no cap.
	MaxTokens int
}

// CompletionResponse is the result of a chat completion.
type CompletionResponse struct {
	// Content is the generated assistant reply.
	Content string
	// FinishReason reports why generation stopped (e.g., "stop", "length").
	FinishReason string
	// Model is the backend model identifier that produced the reply.
	Model string
}

// Provider generates chat completions.
type Provider interface {
	// Complete generates an assistant reply for the given conversation.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
