// Package livekit implements the media transport over a LiveKit room. The
// agent joins as a participant, publishes opus-encoded synthesized speech,
// and decodes the candidate's microphone track back to PCM.
package livekit

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/hirevoice/interview-agent/pkg/rtc"
)

const (
	sampleRate  = 48000
	numChannels = 1

	// opusFrame is 20ms of audio, the standard WebRTC packetization.
	opusFrameSamples  = sampleRate / 50
	opusFrameDuration = 20 * time.Millisecond

	tokenTTL = 2 * time.Hour
)

// Config holds LiveKit room transport configuration.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
	Room      string
	Identity  string

	// Token, when set, is used as the join token instead of minting one
	// from the API key and secret.
	Token string

	Logger *slog.Logger
}

// Transport is a LiveKit-backed rtc.Transport.
type Transport struct {
	cfg    Config
	logger *slog.Logger

	mu           sync.Mutex
	room         *lksdk.Room
	remote       chan rtc.RemoteTrack
	disconnected chan struct{}
	discOnce     sync.Once
	closed       bool
}

// New creates a LiveKit transport. Connect must be called before any track
// operations.
func New(cfg Config) (*Transport, error) {
	switch {
	case cfg.URL == "":
		return nil, fmt.Errorf("livekit URL is required")
	case cfg.Token == "" && (cfg.APIKey == "" || cfg.APISecret == ""):
		return nil, fmt.Errorf("livekit API key and secret are required")
	case cfg.Room == "":
		return nil, fmt.Errorf("room name is required")
	}
	if cfg.Identity == "" {
		cfg.Identity = "interview-agent"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		cfg:          cfg,
		logger:       logger,
		remote:       make(chan rtc.RemoteTrack, 4),
		disconnected: make(chan struct{}),
	}, nil
}

// Token mints a join token for the given identity and room.
func Token(apiKey, apiSecret, room, identity string) (string, error) {
	at := auth.NewAccessToken(apiKey, apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     room,
	}
	at.AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(tokenTTL)
	return at.ToJWT()
}

// Connect joins the room and begins delivering remote audio tracks.
func (t *Transport) Connect(ctx context.Context) error {
	token := t.cfg.Token
	if token == "" {
		var err error
		token, err = Token(t.cfg.APIKey, t.cfg.APISecret, t.cfg.Room, t.cfg.Identity)
		if err != nil {
			return fmt.Errorf("mint join token: %w", err)
		}
	}

	callback := &lksdk.RoomCallback{
		OnDisconnected: t.onDisconnected,
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: t.onTrackSubscribed,
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(t.cfg.URL, token, callback)
	if err != nil {
		return fmt.Errorf("connect to room: %w", err)
	}

	t.mu.Lock()
	t.room = room
	t.mu.Unlock()

	t.logger.Info("joined room",
		slog.String("room", t.cfg.Room),
		slog.String("identity", t.cfg.Identity))
	return nil
}

// PublishTrack publishes a fresh opus audio track for one utterance.
func (t *Transport) PublishTrack(ctx context.Context, name string) (rtc.OutboundTrack, error) {
	t.mu.Lock()
	room := t.room
	t.mu.Unlock()
	if room == nil {
		return nil, fmt.Errorf("transport is not connected")
	}

	local, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: sampleRate,
		Channels:  numChannels,
	})
	if err != nil {
		return nil, fmt.Errorf("create sample track: %w", err)
	}

	encoder, err := opus.NewEncoder(sampleRate, numChannels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}

	publication, err := room.LocalParticipant.PublishTrack(local, &lksdk.TrackPublicationOptions{
		Name: name,
		// Microphone source so browsers treat it as a voice track.
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		return nil, fmt.Errorf("publish track: %w", err)
	}

	t.logger.Debug("track published",
		slog.String("name", name),
		slog.String("sid", publication.SID()))

	return &outboundTrack{
		transport: t,
		local:     local,
		sid:       publication.SID(),
		encoder:   encoder,
	}, nil
}

// RemoteAudio delivers decoded candidate audio tracks.
func (t *Transport) RemoteAudio() <-chan rtc.RemoteTrack {
	return t.remote
}

// Disconnected is closed when the room connection is lost.
func (t *Transport) Disconnected() <-chan struct{} {
	return t.disconnected
}

// Close leaves the room.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	room := t.room
	t.room = nil
	t.mu.Unlock()

	if room != nil {
		room.Disconnect()
	}
	t.discOnce.Do(func() { close(t.disconnected) })
	return nil
}

func (t *Transport) onDisconnected() {
	t.logger.Info("room disconnected")
	t.discOnce.Do(func() { close(t.disconnected) })
}

// onTrackSubscribed spawns a decode loop per remote audio track: RTP opus
// payloads in, PCM frames out.
func (t *Transport) onTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	t.logger.Info("remote audio track subscribed",
		slog.String("participant", participant.Identity()),
		slog.String("track_sid", publication.SID()))

	frames := make(chan rtc.AudioFrame, 32)
	go t.decodeLoop(track, participant.Identity(), frames)

	select {
	case t.remote <- rtc.RemoteTrack{Participant: participant.Identity(), Frames: frames}:
	case <-t.disconnected:
	}
}

func (t *Transport) decodeLoop(track *webrtc.TrackRemote, participant string, frames chan<- rtc.AudioFrame) {
	defer close(frames)

	decoder, err := opus.NewDecoder(sampleRate, numChannels)
	if err != nil {
		t.logger.Error("create opus decoder failed", slog.String("error", err.Error()))
		return
	}

	// Up to 120ms of decoded audio per opus packet.
	pcm := make([]int16, sampleRate/1000*120)
	for {
		packet, _, err := track.ReadRTP()
		if err != nil {
			t.logger.Debug("remote track ended",
				slog.String("participant", participant),
				slog.String("error", err.Error()))
			return
		}
		if len(packet.Payload) == 0 {
			continue
		}

		n, err := decoder.Decode(packet.Payload, pcm)
		if err != nil {
			t.logger.Warn("opus decode failed", slog.String("error", err.Error()))
			continue
		}

		data := make([]byte, n*2)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(pcm[i]))
		}
		frame := rtc.AudioFrame{
			Data:        data,
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		}

		select {
		case frames <- frame:
		case <-t.disconnected:
			return
		}
	}
}

// outboundTrack encodes PCM chunks to 20ms opus frames and writes them to a
// published sample track.
type outboundTrack struct {
	transport *Transport
	local     *lksdk.LocalSampleTrack
	sid       string
	encoder   *opus.Encoder

	mu          sync.Mutex
	pending     []int16 // PCM samples awaiting a full frame
	unpublished bool
}

func (o *outboundTrack) WriteChunk(pcm []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.unpublished {
		return rtc.ErrTrackUnpublished
	}

	for i := 0; i+1 < len(pcm); i += 2 {
		o.pending = append(o.pending, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	return o.flushFrames(false)
}

// Unpublish flushes the remainder and retires the track. Idempotent.
func (o *outboundTrack) Unpublish() error {
	o.mu.Lock()
	if o.unpublished {
		o.mu.Unlock()
		return nil
	}
	o.unpublished = true
	if err := o.flushFrames(true); err != nil {
		o.transport.logger.Warn("flush on unpublish failed", slog.String("error", err.Error()))
	}
	o.mu.Unlock()

	o.transport.mu.Lock()
	room := o.transport.room
	o.transport.mu.Unlock()
	if room == nil {
		return nil
	}
	if err := room.LocalParticipant.UnpublishTrack(o.sid); err != nil {
		return fmt.Errorf("unpublish track %s: %w", o.sid, err)
	}
	return nil
}

// flushFrames encodes and writes every complete 20ms frame in the pending
// buffer. With final set, the tail is zero-padded into one last frame.
func (o *outboundTrack) flushFrames(final bool) error {
	encoded := make([]byte, 1400)
	for len(o.pending) >= opusFrameSamples {
		frame := o.pending[:opusFrameSamples]
		o.pending = o.pending[opusFrameSamples:]
		if err := o.writeFrame(frame, encoded); err != nil {
			return err
		}
	}
	if final && len(o.pending) > 0 {
		frame := make([]int16, opusFrameSamples)
		copy(frame, o.pending)
		o.pending = nil
		return o.writeFrame(frame, encoded)
	}
	return nil
}

func (o *outboundTrack) writeFrame(frame []int16, encoded []byte) error {
	n, err := o.encoder.Encode(frame, encoded)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}
	return o.local.WriteSample(media.Sample{
		Data:     encoded[:n],
		Duration: opusFrameDuration,
	}, nil)
}
