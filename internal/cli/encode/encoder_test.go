package encode

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/ColonelBlimp/cwblocks/internal/audio"
	"github.com/ColonelBlimp/cwblocks/internal/config"
)

func testSettings() config.Settings {
	return config.Settings{
		DeviceIndex:     -1,
		SampleRate:      48000,
		Channels:        1,
		BufferSize:      512,
		ToneFrequency:   750,
		BlockSize:       512,
		OverlapPct:      50,
		AGCDecay:        0.9995,
		AGCAttack:       0.1,
		AGCWarmupBlocks: 10,
		WPM:             15,
		Accuracy:        70,
		FlushDots:       10,
		ToneAmplitude:   0.8,
		MQTTTopic:       "cwblocks/text",
		LogLevel:        "standard",
		LogFile:         "stderr",
	}
}

func newTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	e, err := NewEncoder(testSettings())
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	return e
}

func TestNewEncoder_InvalidSettings(t *testing.T) {
	s := testSettings()
	s.WPM = 0

	if _, err := NewEncoder(s); err == nil {
		t.Error("NewEncoder() accepted wpm 0")
	}
}

func TestEncoder_Symbols(t *testing.T) {
	e := newTestEncoder(t)

	tests := []struct {
		text string
		want string
	}{
		{"SOS", "... --- ... "},
		{"sos", "... --- ... "},
		{"e e", ". / . "},
		{"#", " <?> "},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := e.Symbols(tt.text); got != tt.want {
				t.Errorf("Symbols(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestEncoder_Audio(t *testing.T) {
	e := newTestEncoder(t)

	samples, err := e.Audio(context.Background(), "E")
	if err != nil {
		t.Fatalf("Audio() error = %v", err)
	}

	// one dot keyed, one dot of gap, two dots of letter spacing
	const spd = 3840
	if len(samples) != 4*spd {
		t.Fatalf("len(samples) = %d, want %d", len(samples), 4*spd)
	}

	var peak float64
	for _, s := range samples[:spd] {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if peak < 0.79 || peak > 0.801 {
		t.Errorf("tone peak = %v, want 0.8", peak)
	}
	for i, s := range samples[spd:] {
		if s != 0 {
			t.Fatalf("sample %d = %v in the gap, want 0", spd+i, s)
		}
	}
}

func TestEncoder_WriteWAV(t *testing.T) {
	e := newTestEncoder(t)

	var buf bytes.Buffer
	duration, err := e.WriteWAV(context.Background(), "T", &buf)
	if err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}

	// dash 3 + gap 1 + spacing 2 = 6 dots of 80 ms
	if duration != 480*time.Millisecond {
		t.Errorf("duration = %v, want 480ms", duration)
	}

	r, err := audio.NewWAVReader(&buf)
	if err != nil {
		t.Fatalf("NewWAVReader() error = %v", err)
	}
	if r.SampleRate() != 48000 {
		t.Errorf("SampleRate() = %d, want 48000", r.SampleRate())
	}

	samples, err := r.Read(1 << 20)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(samples) != 6*3840 {
		t.Errorf("read %d samples, want %d", len(samples), 6*3840)
	}
}
