// Package fake provides an in-memory media transport that counts publish and
// unpublish calls, for exercising the speaker controller's track invariants.
package fake

import (
	"context"
	"sync"

	"github.com/hirevoice/interview-agent/pkg/rtc"
)

// FakeTransport records every track operation. It is safe for concurrent use.
type FakeTransport struct {
	// PublishErr, when set, makes PublishTrack fail.
	PublishErr error
	// WriteErr, when set, makes WriteChunk fail on every track.
	WriteErr error

	mu           sync.Mutex
	connected    bool
	publishes    int
	unpublishes  int
	active       int
	maxActive    int
	tracks       []*FakeTrack
	remote       chan rtc.RemoteTrack
	disconnected chan struct{}
	closeOnce    sync.Once
}

// NewFakeTransport creates a FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		remote:       make(chan rtc.RemoteTrack, 4),
		disconnected: make(chan struct{}),
	}
}

// Connect marks the transport connected.
func (t *FakeTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = true
	return nil
}

// PublishTrack publishes a fresh counting track.
func (t *FakeTransport) PublishTrack(ctx context.Context, name string) (rtc.OutboundTrack, error) {
	if t.PublishErr != nil {
		return nil, t.PublishErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishes++
	t.active++
	if t.active > t.maxActive {
		t.maxActive = t.active
	}
	track := &FakeTrack{transport: t, Name: name}
	t.tracks = append(t.tracks, track)
	return track, nil
}

// RemoteAudio returns the remote track channel; tests feed it via AddRemoteTrack.
func (t *FakeTransport) RemoteAudio() <-chan rtc.RemoteTrack {
	return t.remote
}

// AddRemoteTrack delivers a remote participant track to the subscriber.
func (t *FakeTransport) AddRemoteTrack(participant string, frames <-chan rtc.AudioFrame) {
	t.remote <- rtc.RemoteTrack{Participant: participant, Frames: frames}
}

// Disconnected is closed by DropConnection.
func (t *FakeTransport) Disconnected() <-chan struct{} {
	return t.disconnected
}

// DropConnection simulates the transport losing the session channel.
func (t *FakeTransport) DropConnection() {
	t.closeOnce.Do(func() { close(t.disconnected) })
}

// Close tears the fake down.
func (t *FakeTransport) Close() error {
	t.DropConnection()
	return nil
}

// Publishes returns the number of PublishTrack calls.
func (t *FakeTransport) Publishes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.publishes
}

// Unpublishes returns the number of effective Unpublish calls.
func (t *FakeTransport) Unpublishes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unpublishes
}

// MaxActive returns the peak number of concurrently published tracks.
func (t *FakeTransport) MaxActive() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxActive
}

// Tracks returns every track ever published.
func (t *FakeTransport) Tracks() []*FakeTrack {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*FakeTrack, len(t.tracks))
	copy(out, t.tracks)
	return out
}

// FakeTrack records written chunks until unpublished.
type FakeTrack struct {
	Name string

	transport   *FakeTransport
	mu          sync.Mutex
	chunks      [][]byte
	unpublished bool
}

// WriteChunk records the chunk.
func (tr *FakeTrack) WriteChunk(pcm []byte) error {
	if tr.transport.WriteErr != nil {
		return tr.transport.WriteErr
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.unpublished {
		return rtc.ErrTrackUnpublished
	}
	data := make([]byte, len(pcm))
	copy(data, pcm)
	tr.chunks = append(tr.chunks, data)
	return nil
}

// Unpublish retires the track. Idempotent.
func (tr *FakeTrack) Unpublish() error {
	tr.mu.Lock()
	if tr.unpublished {
		tr.mu.Unlock()
		return nil
	}
	tr.unpublished = true
	tr.mu.Unlock()

	tr.transport.mu.Lock()
	tr.transport.unpublishes++
	tr.transport.active--
	tr.transport.mu.Unlock()
	return nil
}

// ChunkCount returns the number of chunks written to this track.
func (tr *FakeTrack) ChunkCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.chunks)
}

// Chunks returns a copy of the written chunks.
func (tr *FakeTrack) Chunks() [][]byte {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([][]byte, len(tr.chunks))
	copy(out, tr.chunks)
	return out
}
