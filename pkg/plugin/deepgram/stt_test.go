package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hirevoice/interview-agent/pkg/ai/stt"
	"github.com/hirevoice/interview-agent/pkg/rtc"
)

func TestParseTranscript(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		wantText    string
		wantIsFinal bool
		wantOK      bool
	}{
		{
			name:        "final result",
			message:     `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello world","confidence":0.98}]}}`,
			wantText:    "hello world",
			wantIsFinal: true,
			wantOK:      true,
		},
		{
			name:        "interim result",
			message:     `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hel"}]}}`,
			wantText:    "hel",
			wantIsFinal: false,
			wantOK:      true,
		},
		{
			name:    "empty transcript skipped",
			message: `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":""}]}}`,
			wantOK:  false,
		},
		{
			name:    "metadata message skipped",
			message: `{"type":"Metadata","request_id":"abc"}`,
			wantOK:  false,
		},
		{
			name:    "no alternatives",
			message: `{"type":"Results","channel":{"alternatives":[]}}`,
			wantOK:  false,
		},
		{
			name:    "malformed json",
			message: `{"type":`,
			wantOK:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isFinal, ok := parseTranscript([]byte(tt.message))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if isFinal != tt.wantIsFinal {
				t.Errorf("isFinal = %v, want %v", isFinal, tt.wantIsFinal)
			}
		})
	}
}

func TestCloseFlushesPendingFinalTranscript(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			var m map[string]string
			if json.Unmarshal(msg, &m) != nil || m["type"] != "CloseStream" {
				continue
			}
			// The transcript held back by endpointing is flushed in
			// response to CloseStream, then the server hangs up.
			final := `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"goodbye"}]}}`
			conn.WriteMessage(websocket.TextMessage, []byte(final))
			return
		}
	}))
	defer srv.Close()

	r, err := New(Config{
		APIKey:  "dg_secret",
		BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stream, err := r.NewStream(context.Background(), stt.StreamConfig{
		SampleRate:  48000,
		NumChannels: 1,
	})
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	if err := stream.Send(rtc.AudioFrame{Data: make([]byte, 960), SampleRate: 48000, NumChannels: 1}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	closed := make(chan error, 1)
	go func() { closed <- stream.Close() }()

	var got []stt.Event
	for event := range stream.Events() {
		got = append(got, event)
	}

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	if len(got) != 1 {
		t.Fatalf("got %d events, want the flushed final: %+v", len(got), got)
	}
	if got[0].Type != stt.EventFinal || got[0].Text != "goodbye" {
		t.Fatalf("event = %+v, want final %q", got[0], "goodbye")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
	if _, err := New(Config{APIKey: "dg_secret"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
