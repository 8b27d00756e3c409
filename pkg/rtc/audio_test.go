package rtc

import (
	"testing"
	"time"
)

func TestPCMDuration(t *testing.T) {
	tests := []struct {
		name        string
		byteLen     int
		sampleRate  int
		numChannels int
		want        time.Duration
	}{
		{"20ms mono 48k", 1920, 48000, 1, 20 * time.Millisecond},
		{"one second mono 48k", 96000, 48000, 1, time.Second},
		{"stereo halves duration", 96000, 48000, 2, 500 * time.Millisecond},
		{"empty", 0, 48000, 1, 0},
		{"zero sample rate", 1920, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PCMDuration(tt.byteLen, tt.sampleRate, tt.numChannels)
			if got != tt.want {
				t.Errorf("PCMDuration(%d, %d, %d) = %v, want %v",
					tt.byteLen, tt.sampleRate, tt.numChannels, got, tt.want)
			}
		})
	}
}

func TestNewAudioFrameValidation(t *testing.T) {
	if _, err := NewAudioFrame(make([]byte, 960), 48000, 1); err != nil {
		t.Fatalf("valid frame rejected: %v", err)
	}
	if _, err := NewAudioFrame(make([]byte, 961), 48000, 1); err == nil {
		t.Error("odd byte length accepted")
	}
	if _, err := NewAudioFrame(make([]byte, 960), 0, 1); err == nil {
		t.Error("zero sample rate accepted")
	}
	if _, err := NewAudioFrame(make([]byte, 960), 48000, 3); err == nil {
		t.Error("three channels accepted")
	}
	if _, err := NewAudioFrame(make([]byte, 6), 48000, 2); err == nil {
		t.Error("data not divisible into stereo samples accepted")
	}
}

func TestAudioFrameAccessors(t *testing.T) {
	frame, err := NewAudioFrame(make([]byte, 1920), 48000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := frame.SampleCount(); got != 960 {
		t.Errorf("SampleCount() = %d, want 960", got)
	}
	if got := frame.Duration(); got != 20*time.Millisecond {
		t.Errorf("Duration() = %v, want 20ms", got)
	}

	clone := frame.Clone()
	clone.Data[0] = 0xFF
	if frame.Data[0] == 0xFF {
		t.Error("Clone shares the underlying data")
	}
}
