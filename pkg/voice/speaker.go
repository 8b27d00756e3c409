// Package voice implements the real-time spoken-dialogue turn-taking engine:
// the per-session speaker controller and the session orchestrator that wires
// transcription, dialogue generation, synthesis and the media transport
// together.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hirevoice/interview-agent/pkg/ai/tts"
	"github.com/hirevoice/interview-agent/pkg/interview"
	"github.com/hirevoice/interview-agent/pkg/rtc"
)

// ErrSpeechCanceled reports that an utterance was cut short by barge-in or a
// newer speak request. It is normal control flow, not a failure.
var ErrSpeechCanceled = errors.New("speech canceled")

// SpeakerState is the per-session "who is allowed to emit audio" state.
type SpeakerState int32

const (
	StateIdle SpeakerState = iota
	StateSpeaking
	StateCanceled
)

func (s SpeakerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StateCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// SpeakerConfig configures a Speaker.
type SpeakerConfig struct {
	Synthesizer tts.Synthesizer
	Transport   rtc.Transport
	VoiceID     string
	SampleRate  int // defaults to 48000

	// PreSpeechPause is the short human pause before each utterance.
	PreSpeechPause time.Duration
	// TrailingPause follows a fully spoken utterance.
	TrailingPause time.Duration

	Logger *slog.Logger
}

// Speaker owns the speaking state machine for one session. Every session has
// its own Speaker; state is never shared across sessions.
//
// State transitions are atomic with respect to concurrent callers: Cancel may
// be invoked from the transcript callback while Speak's pacing loop runs.
type Speaker struct {
	synth      tts.Synthesizer
	transport  rtc.Transport
	voiceID    string
	sampleRate int

	preSpeechPause time.Duration
	trailingPause  time.Duration
	logger         *slog.Logger

	mu     sync.Mutex
	state  SpeakerState
	cancel chan struct{} // token of the in-flight utterance, nil when none
	done   chan struct{} // closed when the in-flight speak call returns
}

// NewSpeaker creates a Speaker in the idle state.
func NewSpeaker(cfg SpeakerConfig) (*Speaker, error) {
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 48000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		synth:          cfg.Synthesizer,
		transport:      cfg.Transport,
		voiceID:        cfg.VoiceID,
		sampleRate:     sampleRate,
		preSpeechPause: cfg.PreSpeechPause,
		trailingPause:  cfg.TrailingPause,
		logger:         logger,
	}, nil
}

// State returns the current speaker state.
func (s *Speaker) State() SpeakerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel interrupts the in-flight utterance, if any. It fires the current
// cancellation token and clears it; the speak call observes the token within
// one chunk iteration and retires its track on the way out. Idempotent; a
// no-op while idle.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSpeaking || s.cancel == nil {
		return
	}
	s.state = StateCanceled
	close(s.cancel)
	s.cancel = nil
	s.logger.Info("speech canceled")
}

// Speak synthesizes text and streams it to a fresh outbound track with
// real-time pacing. A Speak issued while another is in flight cancels the
// older one first: a new speak request always wins.
//
// Returns ErrSpeechCanceled when cut short; the track is unpublished on
// every exit path.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.state == StateSpeaking && s.cancel != nil {
		// Re-entrancy protection: retire the previous utterance.
		close(s.cancel)
	}
	// The previous speak call may still be between its last write and its
	// deferred unpublish, whether it was retired here or via Cancel. Its done
	// channel survives either path; an already-finished call's is closed.
	prevDone := s.done
	s.state = StateSpeaking
	token := make(chan struct{})
	done := make(chan struct{})
	s.cancel = token
	s.done = done
	s.mu.Unlock()

	// Wait for the previous speak call to unpublish its track; two tracks
	// must never be live at once.
	if prevDone != nil {
		<-prevDone
	}

	defer close(done)
	defer func() {
		s.mu.Lock()
		switch {
		case s.cancel == token:
			// Still the current utterance: normal completion.
			s.cancel = nil
			s.state = StateIdle
		case s.cancel == nil && s.state == StateCanceled:
			// Canceled via Cancel() and no newer speak has started.
			s.state = StateIdle
		}
		// Otherwise a newer speak owns the state; leave it alone.
		s.mu.Unlock()
	}()

	if !sleepUnless(ctx, token, s.preSpeechPause) {
		return ErrSpeechCanceled
	}

	chunks, err := s.synth.Synthesize(ctx, tts.Request{
		Text:       text,
		VoiceID:    s.voiceID,
		SampleRate: s.sampleRate,
	})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	if canceled(token) {
		return ErrSpeechCanceled
	}

	// Fresh track per utterance; reusing tracks leaks buffered audio from
	// the previous utterance into this one.
	track, err := s.transport.PublishTrack(ctx, "agent-voice")
	if err != nil {
		return fmt.Errorf("publish track: %w", err)
	}
	defer func() {
		if err := track.Unpublish(); err != nil {
			s.logger.Warn("track unpublish failed", slog.String("error", err.Error()))
		}
	}()

	var spoken time.Duration
	for chunk := range chunks {
		if chunk.Err != nil {
			return fmt.Errorf("synthesis stream: %w", chunk.Err)
		}
		if canceled(token) {
			return ErrSpeechCanceled
		}
		if err := track.WriteChunk(chunk.Data); err != nil {
			return fmt.Errorf("write chunk: %w", err)
		}

		// Real-time pacing: sleep exactly the chunk's playback duration
		// before pulling the next one. Faster garbles the remote playback,
		// slower leaves audible gaps.
		d := rtc.PCMDuration(len(chunk.Data), s.sampleRate, 1)
		spoken += d
		if !sleepUnless(ctx, token, d) {
			return ErrSpeechCanceled
		}
	}

	s.logger.Debug("utterance complete",
		slog.Int("text_len", len(text)),
		slog.Duration("audio", spoken))

	if !sleepUnless(ctx, token, s.trailingPause) {
		return ErrSpeechCanceled
	}
	return nil
}

// SpeakTurns speaks each turn in order, sleeping the turn's pause after every
// non-final turn. Cancellation between or during turns aborts the remainder.
func (s *Speaker) SpeakTurns(ctx context.Context, turns []interview.Turn) error {
	for i, turn := range turns {
		if err := s.Speak(ctx, turn.Text); err != nil {
			if errors.Is(err, ErrSpeechCanceled) {
				s.logger.Info("turn sequence interrupted",
					slog.Int("turn", i+1),
					slog.Int("total", len(turns)))
				return ErrSpeechCanceled
			}
			return fmt.Errorf("turn %d/%d: %w", i+1, len(turns), err)
		}
		if i < len(turns)-1 {
			// The speaker is idle during the pause, so Cancel is a no-op
			// here; interruption between turns rides on the caller's
			// context, which the session cancels on barge-in.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(turn.PauseAfter):
			}
			if s.State() == StateCanceled {
				return ErrSpeechCanceled
			}
		}
	}
	return nil
}

// canceled reports whether the token has fired.
func canceled(token <-chan struct{}) bool {
	select {
	case <-token:
		return true
	default:
		return false
	}
}

// sleepUnless sleeps for d, returning false if the token fires or the
// context ends first.
func sleepUnless(ctx context.Context, token <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return !canceled(token)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-token:
		return false
	case <-ctx.Done():
		return false
	}
}
