// Package llm defines the chat completion boundary used by the dialogue
// generator.
package llm

import (
	"context"

	"github.com/hirevoice/interview-agent/pkg/ai"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// MessageRole is the role of a message in a chat conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single message in a chat conversation.
type Message struct {
	Role    MessageRole
	Content string
}

// ChatRequest contains parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatResponse contains the completion result.
type ChatResponse struct {
	Content    string
	TokensUsed int
}

// LLM performs chat completion requests.
type LLM interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
