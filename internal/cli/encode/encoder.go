// internal/cli/encode/encoder.go
package encode

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ColonelBlimp/cwblocks/internal/audio"
	"github.com/ColonelBlimp/cwblocks/internal/config"
	"github.com/ColonelBlimp/cwblocks/internal/cw"
	"github.com/ColonelBlimp/cwblocks/internal/dsp"
	"github.com/ColonelBlimp/cwblocks/internal/flow"
	"github.com/womat/debug"
)

// Encoder renders text as Morse symbols or as a keyed tone.
type Encoder struct {
	settings config.Settings
}

// NewEncoder validates settings and returns an encoder using them.
func NewEncoder(settings config.Settings) (*Encoder, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &Encoder{settings: settings}, nil
}

// Normalize upper-cases text, the only case the alphabet knows.
func Normalize(text string) []rune {
	return []rune(strings.ToUpper(text))
}

// Symbols returns text in dot/dash notation, e.g. "... --- ... ".
func (e *Encoder) Symbols(text string) string {
	return cw.FormatSymbols(cw.MsgToCW(Normalize(text)))
}

// Audio returns text keyed onto the configured tone at the configured
// speed.
func (e *Encoder) Audio(ctx context.Context, text string) ([]float32, error) {
	keyer, err := dsp.NewKeyer(dsp.KeyerConfig{
		ToneFrequency: e.settings.ToneFrequency,
		SampleRate:    e.settings.SampleRate,
		Amplitude:     e.settings.ToneAmplitude,
	})
	if err != nil {
		return nil, fmt.Errorf("keyer: %w", err)
	}

	spd, err := dsp.SamplesPerDot(e.settings.SampleRate, e.settings.WPM)
	if err != nil {
		return nil, err
	}
	baseband := cw.MessageToBaseband(Normalize(text), spd)

	g := flow.NewGraph(ctx)
	tone := flow.Connect[float32, float32](g, "keyer", keyer, flow.Source(g, baseband, flow.DefaultBufferSize), flow.DefaultBufferSize)
	sink := flow.Collect(g, tone)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sink.Items(), nil
}

// WriteWAV writes text as a keyed tone WAV file to w and returns the
// duration of the audio.
func (e *Encoder) WriteWAV(ctx context.Context, text string, w io.Writer) (time.Duration, error) {
	samples, err := e.Audio(ctx, text)
	if err != nil {
		return 0, err
	}

	rate := int(e.settings.SampleRate)
	if err := audio.WriteWAV(w, samples, rate); err != nil {
		return 0, err
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(rate)
	debug.DebugLog.Printf("encoded %d characters into %d samples (%v)", len([]rune(text)), len(samples), duration)
	return duration, nil
}
