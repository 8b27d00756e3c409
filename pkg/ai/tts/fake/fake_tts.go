// Package fake provides a scripted synthesizer for testing.
package fake

import (
	"context"
	"sync"

	"github.com/hirevoice/interview-agent/pkg/ai/tts"
)

// FakeTTS replays a scripted sequence of PCM chunks for every request.
type FakeTTS struct {
	// Chunks is the PCM chunk sequence emitted per request.
	Chunks [][]byte

	// SynthesizeErr, when set, is returned from Synthesize itself.
	SynthesizeErr error

	// StreamErr, when set, is emitted as a terminal error chunk after
	// FailAfter chunks have been delivered.
	StreamErr error
	FailAfter int

	mu       sync.Mutex
	requests []tts.Request
}

// NewFakeTTS creates a FakeTTS that emits the given chunks.
func NewFakeTTS(chunks ...[]byte) *FakeTTS {
	return &FakeTTS{Chunks: chunks}
}

// Synthesize replays the scripted chunks.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.Request) (<-chan tts.Chunk, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.SynthesizeErr != nil {
		return nil, f.SynthesizeErr
	}

	out := make(chan tts.Chunk, len(f.Chunks)+1)
	go func() {
		defer close(out)
		for i, data := range f.Chunks {
			if f.StreamErr != nil && i == f.FailAfter {
				out <- tts.Chunk{Err: f.StreamErr}
				return
			}
			select {
			case out <- tts.Chunk{Data: data}:
			case <-ctx.Done():
				return
			}
		}
		if f.StreamErr != nil && f.FailAfter >= len(f.Chunks) {
			out <- tts.Chunk{Err: f.StreamErr}
		}
	}()
	return out, nil
}

// Requests returns a copy of every synthesis request seen so far.
func (f *FakeTTS) Requests() []tts.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tts.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// SilentChunk returns a zeroed PCM chunk with the given playback duration at
// the given sample rate (16-bit mono).
func SilentChunk(ms, sampleRate int) []byte {
	samples := sampleRate * ms / 1000
	return make([]byte, samples*2)
}
