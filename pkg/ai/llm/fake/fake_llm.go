// Package fake provides a scripted LLM for testing.
package fake

import (
	"context"
	"sync"

	"github.com/hirevoice/interview-agent/pkg/ai/llm"
)

// FakeLLM returns a fixed response (or error) and records every request.
type FakeLLM struct {
	Response string
	Err      error

	mu       sync.Mutex
	requests []llm.ChatRequest
}

// NewFakeLLM creates a FakeLLM that answers with the given response.
func NewFakeLLM(response string) *FakeLLM {
	return &FakeLLM{Response: response}
}

// Chat records the request and replays the scripted response.
func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Err != nil {
		return llm.ChatResponse{}, f.Err
	}
	return llm.ChatResponse{Content: f.Response}, nil
}

// Requests returns a copy of every chat request seen so far.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}
