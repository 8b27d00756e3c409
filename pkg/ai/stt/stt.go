// Package stt defines the streaming speech-to-text boundary. A Recognizer
// accepts 16-bit PCM frames and emits interim and final transcript events;
// only final, non-empty results trigger downstream processing.
package stt

import (
	"context"

	"github.com/hirevoice/interview-agent/pkg/ai"
	"github.com/hirevoice/interview-agent/pkg/rtc"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// StreamConfig contains configuration for a recognizer stream.
type StreamConfig struct {
	SampleRate  int
	NumChannels int
	Language    string
}

// EventType distinguishes transcript events.
type EventType int

const (
	// EventInterim is a partial, low-confidence result that may change.
	EventInterim EventType = iota
	// EventFinal is a committed result that will not change.
	EventFinal
	// EventError is a terminal recognizer failure. No further transcript
	// events follow; frames sent afterwards are dropped.
	EventError
)

// Event is a single recognizer result or terminal error.
type Event struct {
	Type      EventType
	Text      string
	IsFinal   bool
	Timestamp int64 // milliseconds since epoch
	Err       error // set only for EventError
}

// Recognizer opens streaming recognition sessions.
type Recognizer interface {
	NewStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// Stream is an active recognition session.
type Stream interface {
	// Send forwards a PCM frame to the recognizer. After a terminal error
	// the frame is dropped and Send returns nil; audio is never queued
	// unboundedly against a dead connection.
	Send(frame rtc.AudioFrame) error

	// Events returns the transcript event channel. It closes after a
	// terminal error or once Close has flushed the session.
	Events() <-chan Event

	// Close flushes pending audio and terminates the recognizer connection.
	Close() error
}
