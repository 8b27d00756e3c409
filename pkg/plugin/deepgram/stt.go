// Package deepgram implements streaming speech-to-text over Deepgram's
// realtime websocket API. The recognizer handles endpointing itself, so a
// final transcript arrives once the candidate pauses.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hirevoice/interview-agent/pkg/ai/stt"
	"github.com/hirevoice/interview-agent/pkg/rtc"
)

const (
	defaultBaseURL = "wss://api.deepgram.com/v1/listen"
	defaultModel   = "nova-2"

	// Deepgram drops the connection after ~10s without traffic; keepalives
	// every 5s cover the long silences while the candidate is coding.
	keepaliveInterval = 5 * time.Second

	// closeFlushTimeout bounds how long Close waits for the transcript the
	// server flushes in response to CloseStream.
	closeFlushTimeout = 2 * time.Second
)

// Recognizer opens streaming recognition sessions against Deepgram.
type Recognizer struct {
	apiKey  string
	baseURL string
	model   string
	logger  *slog.Logger
}

// Config holds Deepgram recognizer configuration.
type Config struct {
	APIKey  string
	Model   string // default nova-2
	BaseURL string // overridable for tests
	Logger  *slog.Logger
}

// New creates a Deepgram recognizer.
func New(cfg Config) (*Recognizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		logger:  logger,
	}, nil
}

// NewStream dials the realtime endpoint and starts the read and keepalive
// loops.
func (r *Recognizer) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	params := url.Values{}
	params.Set("model", r.model)
	params.Set("encoding", "linear16")
	params.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	params.Set("channels", strconv.Itoa(cfg.NumChannels))
	params.Set("interim_results", "true")
	params.Set("endpointing", "300")
	params.Set("smart_format", "true")
	if cfg.Language != "" {
		params.Set("language", cfg.Language)
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+r.apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.baseURL+"?"+params.Encode(), header)
	if err != nil {
		return nil, fmt.Errorf("dial deepgram: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &recognizerStream{
		conn:     conn,
		events:   make(chan stt.Event, 16),
		readDone: make(chan struct{}),
		ctx:      streamCtx,
		cancel:   cancel,
		logger:   r.logger,
	}
	go s.readLoop()
	go s.keepaliveLoop()

	r.logger.Debug("deepgram stream opened",
		slog.Int("sample_rate", cfg.SampleRate),
		slog.String("model", r.model))
	return s, nil
}

type recognizerStream struct {
	conn     *websocket.Conn
	events   chan stt.Event
	readDone chan struct{} // closed when readLoop returns
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger

	writeMu sync.Mutex // gorilla allows only one concurrent writer
	mu      sync.Mutex
	dead    bool
	closed  bool
}

// Send forwards one PCM frame. Frames sent after a terminal error are
// dropped silently; audio must never queue against a dead connection.
func (s *recognizerStream) Send(frame rtc.AudioFrame) error {
	s.mu.Lock()
	if s.dead || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	err := s.conn.WriteMessage(websocket.BinaryMessage, frame.Data)
	s.writeMu.Unlock()
	if err != nil {
		s.fail(fmt.Errorf("%w: send audio: %v", stt.ErrFatal, err))
	}
	return nil
}

func (s *recognizerStream) Events() <-chan stt.Event {
	return s.events
}

// Close flushes the session and tears the connection down. Deepgram emits
// any pending final transcript in response to CloseStream and then closes the
// socket; the read loop is left running until that happens so the flushed
// result still reaches the events channel.
func (s *recognizerStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dead := s.dead
	s.mu.Unlock()

	if !dead {
		s.writeMu.Lock()
		err := s.conn.WriteJSON(map[string]string{"type": "CloseStream"})
		s.writeMu.Unlock()
		if err != nil {
			s.logger.Warn("close stream message failed", slog.String("error", err.Error()))
		} else {
			select {
			case <-s.readDone:
			case <-time.After(closeFlushTimeout):
				s.logger.Warn("close flush timed out")
			}
		}
	}
	s.cancel()
	return s.conn.Close()
}

// fail records a terminal error and emits exactly one EventError. Closing the
// events channel is left to readLoop, the only sender of transcript events;
// tearing the connection down here unblocks its pending read.
func (s *recognizerStream) fail(err error) {
	s.mu.Lock()
	if s.dead {
		s.mu.Unlock()
		return
	}
	s.dead = true
	closed := s.closed
	s.mu.Unlock()

	if !closed {
		s.logger.Error("deepgram stream failed", slog.String("error", err.Error()))
		select {
		case s.events <- stt.Event{
			Type:      stt.EventError,
			Err:       err,
			Timestamp: time.Now().UnixMilli(),
		}:
		case <-s.ctx.Done():
		}
	}
	s.cancel()
	s.conn.Close()
}

// readLoop pumps transcript messages into the events channel. It is the sole
// closer of that channel, so no event can race the close.
func (s *recognizerStream) readLoop() {
	defer close(s.readDone)
	defer close(s.events)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			orderly := s.closed || s.dead
			s.mu.Unlock()
			if orderly || s.ctx.Err() != nil {
				// Orderly shutdown, or fail() already emitted the error.
				return
			}
			s.fail(fmt.Errorf("%w: read transcript: %v", stt.ErrFatal, err))
			return
		}

		text, isFinal, ok := parseTranscript(message)
		if !ok {
			continue
		}

		event := stt.Event{
			Type:      stt.EventInterim,
			Text:      text,
			Timestamp: time.Now().UnixMilli(),
		}
		if isFinal {
			event.Type = stt.EventFinal
			event.IsFinal = true
		}

		select {
		case s.events <- event:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *recognizerStream) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteJSON(map[string]string{"type": "KeepAlive"})
			s.writeMu.Unlock()
			if err != nil {
				s.fail(fmt.Errorf("%w: keepalive: %v", stt.ErrFatal, err))
				return
			}
		}
	}
}

// parseTranscript extracts the top alternative from a Deepgram Results
// message. ok is false for non-transcript messages and empty transcripts.
func parseTranscript(message []byte) (text string, isFinal bool, ok bool) {
	var response struct {
		Type    string `json:"type"`
		IsFinal bool   `json:"is_final"`
		Channel struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channel"`
	}
	if err := json.Unmarshal(message, &response); err != nil {
		return "", false, false
	}
	if response.Type != "" && response.Type != "Results" {
		return "", false, false
	}
	if len(response.Channel.Alternatives) == 0 {
		return "", false, false
	}
	text = response.Channel.Alternatives[0].Transcript
	if text == "" {
		return "", false, false
	}
	return text, response.IsFinal, true
}
