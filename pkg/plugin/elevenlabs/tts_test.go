package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/hirevoice/interview-agent/pkg/ai/tts"
)

func TestSynthesizeStreamsPCM(t *testing.T) {
	is := is.New(t)

	audio := make([]byte, 10000)
	for i := range audio {
		audio[i] = byte(i % 251)
	}

	var gotPath, gotKey, gotQuery string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write(audio)
	}))
	defer srv.Close()

	s, err := New(Config{APIKey: "xi_secret", BaseURL: srv.URL})
	is.NoErr(err)

	chunks, err := s.Synthesize(context.Background(), tts.Request{
		Text:       "Hello candidate.",
		VoiceID:    "voice-123",
		SampleRate: 48000,
	})
	is.NoErr(err)

	var received []byte
	for chunk := range chunks {
		is.NoErr(chunk.Err)
		received = append(received, chunk.Data...)
	}
	is.Equal(len(received), len(audio))
	is.Equal(received[0], audio[0])
	is.Equal(received[len(received)-1], audio[len(audio)-1])

	is.Equal(gotPath, "/v1/text-to-speech/voice-123/stream")
	is.True(strings.Contains(gotQuery, "output_format=pcm_48000"))
	is.Equal(gotKey, "xi_secret")
	is.Equal(gotBody["text"], "Hello candidate.")
	is.Equal(gotBody["model_id"], defaultModel)
}

func TestSynthesizeDefaultVoice(t *testing.T) {
	is := is.New(t)

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(make([]byte, 16))
	}))
	defer srv.Close()

	s, err := New(Config{APIKey: "xi_secret", BaseURL: srv.URL})
	is.NoErr(err)

	chunks, err := s.Synthesize(context.Background(), tts.Request{Text: "hi"})
	is.NoErr(err)
	for range chunks {
	}
	is.True(strings.Contains(gotPath, DefaultVoiceID))
}

func TestSynthesizeErrorStatus(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid voice"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s, err := New(Config{APIKey: "xi_secret", BaseURL: srv.URL})
	is.NoErr(err)

	_, err = s.Synthesize(context.Background(), tts.Request{Text: "hi"})
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "422"))
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
