// Package rtc defines the audio types and the media transport boundary the
// interview agent speaks and listens through. Implementations live in
// subpackages (pkg/rtc/livekit for the real transport, pkg/rtc/fake for tests).
package rtc

import (
	"fmt"
	"time"
)

// AudioFrame is a chunk of 16-bit little-endian PCM audio.
// Frames are immutable after creation.
type AudioFrame struct {
	Data        []byte // 16-bit PCM, little-endian
	SampleRate  int    // typically 48000
	NumChannels int    // 1 or 2
}

// NewAudioFrame creates an AudioFrame, validating that the data length is a
// whole number of samples for the channel count.
func NewAudioFrame(data []byte, sampleRate, numChannels int) (AudioFrame, error) {
	if sampleRate <= 0 {
		return AudioFrame{}, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if numChannels != 1 && numChannels != 2 {
		return AudioFrame{}, fmt.Errorf("invalid channel count %d", numChannels)
	}
	if len(data)%(2*numChannels) != 0 {
		return AudioFrame{}, fmt.Errorf("audio data length %d is not a whole number of %d-channel samples", len(data), numChannels)
	}
	return AudioFrame{Data: data, SampleRate: sampleRate, NumChannels: numChannels}, nil
}

// Duration returns the real playback duration of the frame.
func (f AudioFrame) Duration() time.Duration {
	return PCMDuration(len(f.Data), f.SampleRate, f.NumChannels)
}

// SampleCount returns the number of samples per channel in the frame.
func (f AudioFrame) SampleCount() int {
	return len(f.Data) / (2 * f.NumChannels)
}

// Clone returns a deep copy of the frame.
func (f AudioFrame) Clone() AudioFrame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return AudioFrame{Data: data, SampleRate: f.SampleRate, NumChannels: f.NumChannels}
}

// PCMDuration converts a byte length of 16-bit PCM into its playback
// duration: bytes/2 samples, samples/sampleRate seconds.
func PCMDuration(byteLen, sampleRate, numChannels int) time.Duration {
	if sampleRate <= 0 || numChannels <= 0 {
		return 0
	}
	samples := byteLen / (2 * numChannels)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
