package llm

import "context"

// CompletionRequest is a single-shot completion call
type CompletionRequest struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

// Client is the interface for LLM completion providers (OpenAI, Ollama, ...)
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	CountTokens(text string) int
}

// Ensure implementations satisfy the interface
var _ Client = (*OpenAIClient)(nil)
var _ Client = (*OllamaClient)(nil)
