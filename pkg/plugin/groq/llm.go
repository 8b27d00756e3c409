// Package groq implements the chat completion boundary against Groq's
// OpenAI-compatible API.
package groq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hirevoice/interview-agent/pkg/ai/llm"
)

const (
	baseURL      = "https://api.groq.com/openai/v1"
	defaultModel = "llama-3.3-70b-versatile"
)

// LLM is a Groq-backed chat completion client.
type LLM struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// Config holds Groq client configuration.
type Config struct {
	APIKey string
	Model  string // default llama-3.3-70b-versatile
	Logger *slog.Logger
}

// New creates a Groq LLM client.
func New(cfg Config) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL

	return &LLM{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}, nil
}

// Chat performs a chat completion over the full conversation history.
func (g *LLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, fmt.Errorf("chat completion returned no choices")
	}

	g.logger.Debug("chat completion",
		slog.Int("messages", len(req.Messages)),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("elapsed", time.Since(start)))

	return llm.ChatResponse{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
