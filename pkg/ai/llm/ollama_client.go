package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/shippingcomps/backend/pkg/logger"
)

// OllamaClient talks to a local Ollama server through its OpenAI-compatible API.
// Used as a zero-cost local fallback when no OpenAI key is configured.
type OllamaClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      logger.Logger
}

// OllamaConfig for the Ollama client
type OllamaConfig struct {
	BaseURL     string  // default: http://localhost:11434
	Model       string  // default: llama3
	Temperature float32 // default: 0.7
	MaxTokens   int     // default: 2000
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(cfg OllamaConfig, log logger.Logger) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if log == nil {
		log = logger.Default()
	}

	// Ollama ignores the API key but the client requires one
	config := openai.DefaultConfig("ollama")
	config.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/v1"

	return &OllamaClient{
		client:      openai.NewClientWithConfig(config),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      log,
	}
}

// Complete sends a chat completion request and returns the message text
func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("ollama completion failed", "error", err, "duration", duration.String())
		return "", fmt.Errorf("ollama completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from ollama")
	}

	c.logger.Debug("ollama completion done",
		"model", c.model,
		"tokens", resp.Usage.TotalTokens,
		"duration", duration.String())

	return resp.Choices[0].Message.Content, nil
}

// CountTokens estimates the number of tokens in a text
func (c *OllamaClient) CountTokens(text string) int {
	return len(text) / 4
}
