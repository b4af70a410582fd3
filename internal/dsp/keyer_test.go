// internal/dsp/keyer_test.go
package dsp

import (
	"errors"
	"math"
	"testing"

	"github.com/ColonelBlimp/cwblocks/internal/flow"
)

func TestSamplesPerDot(t *testing.T) {
	testCases := []struct {
		sampleRate float64
		wpm        int
		want       int
	}{
		{48000, 20, 2880},
		{48000, 15, 3840},
		{8000, 12, 800},
		{100, 1000, 1},
	}

	for _, tc := range testCases {
		got, err := SamplesPerDot(tc.sampleRate, tc.wpm)
		if err != nil {
			t.Fatalf("SamplesPerDot(%v, %d) failed: %v", tc.sampleRate, tc.wpm, err)
		}
		if got != tc.want {
			t.Errorf("SamplesPerDot(%v, %d) = %d, want %d", tc.sampleRate, tc.wpm, got, tc.want)
		}
	}
}

func TestSamplesPerDot_Invalid(t *testing.T) {
	if _, err := SamplesPerDot(0, 20); !errors.Is(err, ErrInvalidSampleRate) {
		t.Errorf("Expected ErrInvalidSampleRate, got: %v", err)
	}
	if _, err := SamplesPerDot(48000, 0); !errors.Is(err, ErrInvalidWPM) {
		t.Errorf("Expected ErrInvalidWPM, got: %v", err)
	}
}

func TestNewKeyer_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name string
		cfg  KeyerConfig
		want error
	}{
		{"zero sample rate", KeyerConfig{ToneFrequency: 750, SampleRate: 0, Amplitude: 0.5}, ErrInvalidSampleRate},
		{"zero frequency", KeyerConfig{ToneFrequency: 0, SampleRate: 48000, Amplitude: 0.5}, ErrInvalidFrequency},
		{"above nyquist", KeyerConfig{ToneFrequency: 30000, SampleRate: 48000, Amplitude: 0.5}, ErrInvalidFrequency},
		{"negative amplitude", KeyerConfig{ToneFrequency: 750, SampleRate: 48000, Amplitude: -1}, ErrInvalidAmplitude},
		{"amplitude above one", KeyerConfig{ToneFrequency: 750, SampleRate: 48000, Amplitude: 1.5}, ErrInvalidAmplitude},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewKeyer(tc.cfg); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got: %v", tc.want, err)
			}
		})
	}
}

func TestKeyer_Key(t *testing.T) {
	k, err := NewKeyer(KeyerConfig{ToneFrequency: testToneFrequency, SampleRate: testSampleRate, Amplitude: 0.8})
	if err != nil {
		t.Fatalf("NewKeyer failed: %v", err)
	}

	baseband := make([]float32, 2*testBlockSize)
	for i := 0; i < testBlockSize; i++ {
		baseband[i] = 1
	}
	audio := k.Key(baseband)

	for i := testBlockSize; i < len(audio); i++ {
		if audio[i] != 0 {
			t.Fatalf("sample %d = %v while the key is up", i, audio[i])
		}
	}

	g := createTestGoertzel(t)
	magnitude, err := g.Magnitude(audio)
	if err != nil {
		t.Fatalf("Magnitude failed: %v", err)
	}
	if math.Abs(magnitude-0.8) > 0.01 {
		t.Errorf("Expected keyed tone magnitude ~0.8, got: %v", magnitude)
	}
}

func TestKeyer_PhaseContinuous(t *testing.T) {
	cfg := KeyerConfig{ToneFrequency: testToneFrequency, SampleRate: testSampleRate, Amplitude: 1}
	whole, _ := NewKeyer(cfg)
	split, _ := NewKeyer(cfg)

	baseband := make([]float32, 1000)
	for i := range baseband {
		baseband[i] = 1
	}

	want := whole.Key(baseband)
	got := append(split.Key(baseband[:333]), split.Key(baseband[333:])...)

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, got[i], want[i])
		}
	}
}

func TestKeyer_Work(t *testing.T) {
	k, _ := NewKeyer(KeyerConfig{ToneFrequency: testToneFrequency, SampleRate: testSampleRate, Amplitude: 1})

	var io flow.WorkIO
	in := flow.NewInput(make([]float32, 10), true)
	out := flow.NewOutput(make([]float32, 4))
	k.Work(&io, in, out)

	if in.Consumed() != 4 || out.Produced() != 4 {
		t.Errorf("Expected 4 in, 4 out, got: %d in, %d out", in.Consumed(), out.Produced())
	}
	if io.Finished {
		t.Error("Finished set with input left")
	}

	io = flow.WorkIO{}
	in = flow.NewInput(make([]float32, 6), true)
	out = flow.NewOutput(make([]float32, 8))
	k.Work(&io, in, out)

	if !io.Finished {
		t.Error("Expected Finished after the last sample")
	}
}
