// Package tts defines the speech synthesis boundary: text in, a finite lazy
// stream of raw PCM chunks out. Pacing is the caller's responsibility.
package tts

import (
	"context"

	"github.com/hirevoice/interview-agent/pkg/ai"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// Request contains parameters for a synthesis call.
type Request struct {
	Text       string
	VoiceID    string
	SampleRate int
}

// Chunk is one piece of a synthesis stream: raw 16-bit mono PCM, or a
// terminal error. A chunk's playback duration is derivable from its byte
// length and the requested sample rate.
type Chunk struct {
	Data []byte
	Err  error
}

// Synthesizer converts text into a streamed PCM response. The returned
// channel closes at end of stream; the stream is finite and not restartable.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (<-chan Chunk, error)
}
