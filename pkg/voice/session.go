package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hirevoice/interview-agent/pkg/ai/stt"
	"github.com/hirevoice/interview-agent/pkg/interview"
	"github.com/hirevoice/interview-agent/pkg/rtc"
	"github.com/hirevoice/interview-agent/pkg/store"
)

// DialogueGenerator produces the interviewer's reply to a candidate
// utterance. Implementations convert their own failures into safe spoken
// fallbacks; Reply never returns an error.
type DialogueGenerator interface {
	Reply(ctx context.Context, sessionID, utterance string) (turns []interview.Turn, end bool)
	ClearHistory(sessionID string)
}

// Completer marks the interview finished when the candidate asks to end it.
type Completer interface {
	Complete(ctx context.Context, sessionID string) error
}

// SessionConfig configures a Session.
type SessionConfig struct {
	ID          string
	Speaker     *Speaker
	Generator   DialogueGenerator
	Recognizer  stt.Recognizer
	Transport   rtc.Transport
	Transcripts store.TranscriptStore
	Completer   Completer

	// Greeting is spoken as soon as the session connects, without waiting
	// for the candidate.
	Greeting string

	// SampleRate of inbound and outbound PCM. Defaults to 48000.
	SampleRate int

	Logger *slog.Logger
}

// Session runs one live interview conversation: it joins the media channel,
// pipes candidate audio into the recognizer, and turns each final transcript
// into a spoken reply. Final transcripts are processed strictly in arrival
// order; a new one interrupts whatever the agent is saying.
type Session struct {
	id          string
	speaker     *Speaker
	generator   DialogueGenerator
	recognizer  stt.Recognizer
	transport   rtc.Transport
	transcripts store.TranscriptStore
	completer   Completer
	greeting    string
	sampleRate  int
	logger      *slog.Logger

	mu          sync.Mutex
	replyCancel context.CancelFunc // in-flight reply playback, nil when none
	replyDone   chan struct{}

	endOnce sync.Once
	ended   chan struct{}
}

// NewSession creates a Session.
func NewSession(cfg SessionConfig) (*Session, error) {
	switch {
	case cfg.ID == "":
		return nil, fmt.Errorf("session id is required")
	case cfg.Speaker == nil:
		return nil, fmt.Errorf("speaker is required")
	case cfg.Generator == nil:
		return nil, fmt.Errorf("generator is required")
	case cfg.Recognizer == nil:
		return nil, fmt.Errorf("recognizer is required")
	case cfg.Transport == nil:
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
	return &Session{
		id:          cfg.ID,
		speaker:     cfg.Speaker,
		generator:   cfg.Generator,
		recognizer:  cfg.Recognizer,
		transport:   cfg.Transport,
		transcripts: cfg.Transcripts,
		completer:   cfg.Completer,
		greeting:    cfg.Greeting,
		sampleRate:  sampleRate,
		logger:      logger.With(slog.String("session_id", cfg.ID)),
		ended:       make(chan struct{}),
	}, nil
}

// Run connects the transport and drives the conversation until the context
// ends, the transport disconnects, or the candidate ends the interview.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}
	defer s.transport.Close()

	s.logger.Info("session started")

	if s.greeting != "" {
		// The greeting must not block subscription to candidate audio: the
		// candidate can barge in on it like any other utterance.
		s.startReply(ctx, interview.SplitTurns(s.greeting), false)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session context ended")
			return ctx.Err()
		case <-s.ended:
			s.logger.Info("interview ended by candidate")
			return nil
		case <-s.transport.Disconnected():
			s.logger.Info("transport disconnected")
			return nil
		case remote, ok := <-s.transport.RemoteAudio():
			if !ok {
				return nil
			}
			s.logger.Info("candidate audio track subscribed",
				slog.String("participant", remote.Participant))
			if err := s.startTranscription(ctx, remote); err != nil {
				s.logger.Error("start transcription failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// startTranscription opens a recognizer stream for one remote track and
// spawns the feeder and consumer goroutines.
func (s *Session) startTranscription(ctx context.Context, remote rtc.RemoteTrack) error {
	stream, err := s.recognizer.NewStream(ctx, stt.StreamConfig{
		SampleRate:  s.sampleRate,
		NumChannels: 1,
		Language:    "en",
	})
	if err != nil {
		return fmt.Errorf("open recognizer stream: %w", err)
	}

	// Feeder: candidate PCM frames into the recognizer.
	go func() {
		defer stream.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-remote.Frames:
				if !ok {
					return
				}
				if err := stream.Send(frame); err != nil {
					s.logger.Warn("recognizer send failed",
						slog.String("error", err.Error()))
					return
				}
			}
		}
	}()

	// Consumer: a single goroutine so final transcripts are handled strictly
	// in arrival order.
	go func() {
		for event := range stream.Events() {
			switch event.Type {
			case stt.EventInterim:
				// Interim results are noise for turn-taking purposes.
			case stt.EventFinal:
				text := strings.TrimSpace(event.Text)
				if text == "" {
					continue
				}
				s.handleFinalTranscript(ctx, text)
			case stt.EventError:
				s.logger.Error("recognizer stream failed",
					slog.String("error", event.Err.Error()))
			}
		}
	}()

	return nil
}

// handleFinalTranscript is the barge-in point: the candidate has finished an
// utterance, so whatever the agent is saying, including pauses between its
// turns, is abandoned in favor of a fresh reply.
func (s *Session) handleFinalTranscript(ctx context.Context, text string) {
	s.logger.Info("final transcript", slog.String("text", text))

	s.interruptReply()

	s.persist(ctx, "user", text)

	turns, end := s.generator.Reply(ctx, s.id, text)
	if len(turns) > 0 {
		s.persist(ctx, "assistant", joinTurns(turns))
	}
	s.startReply(ctx, turns, end)
}

// interruptReply cancels the in-flight reply playback, if any, and waits for
// it to stop so two replies never overlap on the wire.
func (s *Session) interruptReply() {
	s.mu.Lock()
	cancel := s.replyCancel
	done := s.replyDone
	s.replyCancel = nil
	s.replyDone = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if s.speaker.State() == StateSpeaking {
		s.speaker.Cancel()
	}
	if done != nil {
		<-done
	}
}

// startReply speaks the turns on a goroutine under a cancelable context, so
// the next final transcript can abort the playback even between turns.
func (s *Session) startReply(ctx context.Context, turns []interview.Turn, end bool) {
	if len(turns) == 0 {
		if end {
			s.finish(ctx)
		}
		return
	}

	replyCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.replyCancel = cancel
	s.replyDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		if err := s.speaker.SpeakTurns(replyCtx, turns); err != nil {
			if err == ErrSpeechCanceled || replyCtx.Err() != nil {
				s.logger.Debug("reply interrupted")
			} else {
				s.logger.Error("reply playback failed",
					slog.String("error", err.Error()))
			}
			return
		}
		if end {
			s.finish(ctx)
		}
	}()
}

// finish marks the interview complete and releases per-session resources.
func (s *Session) finish(ctx context.Context) {
	s.endOnce.Do(func() {
		if s.completer != nil {
			if err := s.completer.Complete(ctx, s.id); err != nil {
				s.logger.Error("complete interview failed",
					slog.String("error", err.Error()))
			}
		}
		s.generator.ClearHistory(s.id)
		close(s.ended)
	})
}

// persist appends a transcript entry. Persistence is best effort: a storage
// failure is logged and the conversation continues.
func (s *Session) persist(ctx context.Context, role, content string) {
	if s.transcripts == nil {
		return
	}
	err := s.transcripts.Append(ctx, s.id, store.Entry{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.logger.Error("transcript append failed",
			slog.String("role", role),
			slog.String("error", err.Error()))
	}
}

func joinTurns(turns []interview.Turn) string {
	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}
