package rtc

import (
	"context"
	"errors"
)

// ErrTrackUnpublished is returned by OutboundTrack.WriteChunk after the track
// has been retired.
var ErrTrackUnpublished = errors.New("audio track is unpublished")

// RemoteTrack is a subscribed participant audio track, decoded to PCM.
// The Frames channel closes when the participant's track ends.
type RemoteTrack struct {
	Participant string
	Frames      <-chan AudioFrame
}

// OutboundTrack is a published audio track owned by exactly one utterance.
// It is created at the start of a speak call and retired at its end; tracks
// are never reused across utterances.
type OutboundTrack interface {
	// WriteChunk pushes a chunk of 16-bit PCM to the track. The caller is
	// responsible for real-time pacing.
	WriteChunk(pcm []byte) error

	// Unpublish retires the track. Idempotent; unpublishing a track the
	// transport no longer knows about is a warning, not a failure.
	Unpublish() error
}

// Transport is the bidirectional media/session channel between the agent and
// the candidate. It hides the wire format entirely: the agent only sees PCM
// frames in and PCM chunks out.
type Transport interface {
	// Connect joins the session channel.
	Connect(ctx context.Context) error

	// PublishTrack creates and publishes a fresh outbound audio track.
	PublishTrack(ctx context.Context, name string) (OutboundTrack, error)

	// RemoteAudio delivers each remote participant audio track as it
	// becomes available.
	RemoteAudio() <-chan RemoteTrack

	// Disconnected is closed when the transport loses the session channel.
	Disconnected() <-chan struct{}

	// Close tears the channel down.
	Close() error
}
