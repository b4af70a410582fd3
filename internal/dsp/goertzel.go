// internal/dsp/goertzel.go
package dsp

import (
	"errors"
	"math"

	"github.com/mjibson/go-dsp/window"
)

var (
	// ErrInvalidBlockSize indicates block size must be positive
	ErrInvalidBlockSize = errors.New("block size must be positive")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidFrequency indicates frequency must be positive and below Nyquist
	ErrInvalidFrequency = errors.New("target frequency must be positive and less than Nyquist frequency")
	// ErrInsufficientSamples indicates not enough samples for the configured block size
	ErrInsufficientSamples = errors.New("insufficient samples for block size")
)

// GoertzelConfig holds configuration for the tone filter.
type GoertzelConfig struct {
	// TargetFrequency is the CW tone pitch in Hz (from config: tone_frequency)
	TargetFrequency float64
	// SampleRate is the audio sample rate in Hz (from config: sample_rate)
	SampleRate float64
	// BlockSize is the number of samples per measurement (from config: block_size)
	BlockSize int
}

// Goertzel measures the amplitude of a single frequency over a Hann windowed
// block. A sine of amplitude A at the target frequency measures A.
type Goertzel struct {
	config      GoertzelConfig
	coefficient float64
	window      []float64
	normalizer  float64
}

// NewGoertzel creates a tone filter.
func NewGoertzel(cfg GoertzelConfig) (*Goertzel, error) {
	if cfg.BlockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	nyquist := cfg.SampleRate / 2.0
	if cfg.TargetFrequency <= 0 || cfg.TargetFrequency >= nyquist {
		return nil, ErrInvalidFrequency
	}

	k := (cfg.TargetFrequency / cfg.SampleRate) * float64(cfg.BlockSize)
	omega := (2.0 * math.Pi * k) / float64(cfg.BlockSize)

	w := window.Hann(cfg.BlockSize)
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		// a one or two sample Hann window is all zeros
		for i := range w {
			w[i] = 1
		}
		sum = float64(cfg.BlockSize)
	}

	return &Goertzel{
		config:      cfg,
		coefficient: 2.0 * math.Cos(omega),
		window:      w,
		normalizer:  2.0 / sum,
	}, nil
}

// Magnitude returns the amplitude of the target frequency in the first
// BlockSize samples.
func (g *Goertzel) Magnitude(samples []float32) (float64, error) {
	if len(samples) < g.config.BlockSize {
		return 0, ErrInsufficientSamples
	}
	return g.magnitude(samples), nil
}

// magnitude requires len(samples) >= BlockSize.
func (g *Goertzel) magnitude(samples []float32) float64 {
	var s0, s1, s2 float64
	coeff := g.coefficient

	for i, w := range g.window {
		s0 = float64(samples[i])*w + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}

	return math.Sqrt(power) * g.normalizer
}

// Config returns the filter configuration.
func (g *Goertzel) Config() GoertzelConfig {
	return g.config
}

// BlockSize returns the configured block size
func (g *Goertzel) BlockSize() int {
	return g.config.BlockSize
}
