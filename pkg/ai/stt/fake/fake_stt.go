// Package fake provides a scripted recognizer for testing.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/hirevoice/interview-agent/pkg/ai/stt"
	"github.com/hirevoice/interview-agent/pkg/rtc"
)

// FakeRecognizer hands out FakeStreams that tests drive by hand.
type FakeRecognizer struct {
	// StreamErr, when set, is returned from NewStream.
	StreamErr error

	mu      sync.Mutex
	streams []*FakeStream
}

// NewFakeRecognizer creates a FakeRecognizer.
func NewFakeRecognizer() *FakeRecognizer {
	return &FakeRecognizer{}
}

// NewStream creates a new fake recognition stream.
func (f *FakeRecognizer) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	if f.StreamErr != nil {
		return nil, f.StreamErr
	}
	s := &FakeStream{
		config: cfg,
		events: make(chan stt.Event, 16),
	}
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

// Last returns the most recently opened stream, or nil.
func (f *FakeRecognizer) Last() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

// FakeStream records pushed frames and lets tests emit transcript events.
type FakeStream struct {
	config stt.StreamConfig
	events chan stt.Event

	mu     sync.Mutex
	frames []rtc.AudioFrame
	closed bool
}

// Send records the frame. Frames sent after Close are dropped.
func (s *FakeStream) Send(frame rtc.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.frames = append(s.frames, frame)
	return nil
}

// Events returns the transcript event channel.
func (s *FakeStream) Events() <-chan stt.Event {
	return s.events
}

// Close marks the stream closed and closes the event channel.
func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

// FrameCount returns the number of frames pushed so far.
func (s *FakeStream) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// EmitInterim emits an interim transcript event.
func (s *FakeStream) EmitInterim(text string) {
	s.emit(stt.Event{Type: stt.EventInterim, Text: text, Timestamp: time.Now().UnixMilli()})
}

// EmitFinal emits a final transcript event.
func (s *FakeStream) EmitFinal(text string) {
	s.emit(stt.Event{Type: stt.EventFinal, Text: text, IsFinal: true, Timestamp: time.Now().UnixMilli()})
}

// EmitError emits a terminal error event and closes the stream.
func (s *FakeStream) EmitError(err error) {
	s.emit(stt.Event{Type: stt.EventError, Err: err, Timestamp: time.Now().UnixMilli()})
	s.Close()
}

func (s *FakeStream) emit(ev stt.Event) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.events <- ev
}
