// Package elevenlabs implements speech synthesis over the ElevenLabs
// streaming HTTP API, delivering raw 16-bit PCM chunks as they arrive.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hirevoice/interview-agent/pkg/ai/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_turbo_v2_5"

	// DefaultVoiceID is the voice used when the caller specifies none.
	DefaultVoiceID = "nPczCjzI2devNBz1zQrb"

	// chunkSize is how much PCM each channel delivery carries. Small enough
	// that cancellation between chunks is responsive, large enough to keep
	// channel overhead negligible.
	chunkSize = 4096
)

// Synthesizer converts text into streamed PCM audio via ElevenLabs.
type Synthesizer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds ElevenLabs synthesizer configuration.
type Config struct {
	APIKey  string
	Model   string // default eleven_turbo_v2_5
	BaseURL string // overridable for tests
	Logger  *slog.Logger
}

// New creates an ElevenLabs synthesizer.
func New(cfg Config) (*Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs API key is required")
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
	return &Synthesizer{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}, nil
}

// Synthesize streams synthesized speech for the text. The returned channel
// delivers PCM chunks as the provider produces them and closes at the end of
// the utterance; a mid-stream failure arrives as a chunk with Err set.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (<-chan tts.Chunk, error) {
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = 48000
	}

	body, err := json.Marshal(map[string]any{
		"text":     req.Text,
		"model_id": s.model,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=pcm_%d",
		s.baseURL, voiceID, sampleRate)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("elevenlabs status %d: %s", resp.StatusCode, detail)
	}

	chunks := make(chan tts.Chunk)
	go s.stream(ctx, resp.Body, chunks, len(req.Text))
	return chunks, nil
}

func (s *Synthesizer) stream(ctx context.Context, body io.ReadCloser, chunks chan<- tts.Chunk, textLen int) {
	defer close(chunks)
	defer body.Close()

	start := time.Now()
	var total int
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(body, buf)
		if n > 0 {
			total += n
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case chunks <- tts.Chunk{Data: data}:
			case <-ctx.Done():
				return
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			s.logger.Debug("synthesis stream complete",
				slog.Int("text_len", textLen),
				slog.Int("audio_bytes", total),
				slog.Duration("elapsed", time.Since(start)))
			return
		}
		if err != nil {
			select {
			case chunks <- tts.Chunk{Err: fmt.Errorf("read audio stream: %w", err)}:
			case <-ctx.Done():
			}
			return
		}
	}
}
