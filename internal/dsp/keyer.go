// internal/dsp/keyer.go
package dsp

import (
	"errors"
	"math"

	"github.com/ColonelBlimp/cwblocks/internal/flow"
)

// parisSeconds is the length of one dot at 1 WPM: the word PARIS spans 50
// dots and is sent once per minute.
const parisSeconds = 1.2

var (
	// ErrInvalidWPM indicates the keying speed must be positive
	ErrInvalidWPM = errors.New("wpm must be positive")
	// ErrInvalidAmplitude indicates tone amplitude must be between 0 and 1
	ErrInvalidAmplitude = errors.New("tone amplitude must be between 0.0 and 1.0")
)

// SamplesPerDot returns the dot length in samples at sampleRate and wpm.
func SamplesPerDot(sampleRate float64, wpm int) (int, error) {
	if sampleRate <= 0 {
		return 0, ErrInvalidSampleRate
	}
	if wpm <= 0 {
		return 0, ErrInvalidWPM
	}
	return max(1, int(math.Round(sampleRate*parisSeconds/float64(wpm)))), nil
}

// KeyerConfig holds configuration for the tone keyer.
type KeyerConfig struct {
	// ToneFrequency is the pitch of the keyed tone in Hz (from config: tone_frequency)
	ToneFrequency float64
	// SampleRate is the audio sample rate in Hz (from config: sample_rate)
	SampleRate float64
	// Amplitude is the peak level of the tone, 0-1 (from config: tone_amplitude)
	Amplitude float64
}

// Keyer modulates a baseband key signal onto an audio tone. The oscillator
// runs continuously so the phase never jumps between elements.
type Keyer struct {
	config KeyerConfig
	step   float64
	phase  float64
}

// NewKeyer creates a keyer.
func NewKeyer(cfg KeyerConfig) (*Keyer, error) {
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.ToneFrequency <= 0 || cfg.ToneFrequency >= cfg.SampleRate/2 {
		return nil, ErrInvalidFrequency
	}
	if cfg.Amplitude < 0 || cfg.Amplitude > 1 {
		return nil, ErrInvalidAmplitude
	}
	return &Keyer{
		config: cfg,
		step:   2 * math.Pi * cfg.ToneFrequency / cfg.SampleRate,
	}, nil
}

// Key returns the audio for baseband.
func (k *Keyer) Key(baseband []float32) []float32 {
	out := make([]float32, len(baseband))
	k.key(out, baseband)
	return out
}

// Work implements flow.Kernel.
func (k *Keyer) Work(io *flow.WorkIO, in *flow.Input[float32], out *flow.Output[float32]) {
	o := out.Slice()
	n := min(len(o), len(in.Slice()))
	k.key(o[:n], in.Slice()[:n])
	in.Consume(n)
	out.Produce(n)

	if in.Finished() && n == len(in.Slice()) {
		io.Finished = true
	}
}

func (k *Keyer) key(dst, baseband []float32) {
	for i, b := range baseband {
		dst[i] = float32(float64(b) * k.config.Amplitude * math.Sin(k.phase))
		k.phase += k.step
		if k.phase >= 2*math.Pi {
			k.phase -= 2 * math.Pi
		}
	}
}
