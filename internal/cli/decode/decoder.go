// internal/cli/decode/decoder.go
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/cwblocks/internal/audio"
	"github.com/ColonelBlimp/cwblocks/internal/config"
	"github.com/ColonelBlimp/cwblocks/internal/cw"
	"github.com/ColonelBlimp/cwblocks/internal/dsp"
	"github.com/ColonelBlimp/cwblocks/internal/flow"
	"github.com/ColonelBlimp/cwblocks/internal/recovery"
	"github.com/dustin/go-humanize"
	"github.com/womat/debug"
)

// fileChunk is the number of frames read from a WAV file at a time.
const fileChunk = 4096

// ErrNoAudio indicates the live sample channel is missing
var ErrNoAudio = errors.New("no audio source")

// TextWriter receives decoded characters as they are resolved.
type TextWriter interface {
	Write(chars []rune) error
}

// Decoder assembles the receive chain (tone filter, envelope, timing
// classifier, symbol decoder) from the settings and runs it over an audio
// source.
type Decoder struct {
	settings config.Settings
	writers  []TextWriter
}

// Summary describes a finished decode run.
type Summary struct {
	Samples  uint64
	Symbols  uint64
	Chars    uint64
	Duration time.Duration
}

// String renders the summary for humans.
func (s Summary) String() string {
	return fmt.Sprintf("%s samples, %s symbols, %s characters in %s",
		humanize.Comma(int64(s.Samples)),
		humanize.Comma(int64(s.Symbols)),
		humanize.Comma(int64(s.Chars)),
		s.Duration.Round(time.Millisecond))
}

// NewDecoder validates settings and returns a decoder using them.
func NewDecoder(settings config.Settings) (*Decoder, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &Decoder{settings: settings}, nil
}

// AddWriter registers w to receive every decoded character in addition to
// the run's output writer.
func (d *Decoder) AddWriter(w TextWriter) {
	d.writers = append(d.writers, w)
}

// EnvelopeSamplesPerDot returns the dot length in envelope values, the
// unit the classifier counts in.
func EnvelopeSamplesPerDot(s config.Settings) int {
	return max(1, int(math.Round(float64(s.SamplesPerDot())/float64(s.HopSize()))))
}

// DecodeFile decodes a WAV file and writes the text to w. flush_dots dots
// of silence are appended so the last word is resolved.
func (d *Decoder) DecodeFile(ctx context.Context, r io.Reader, w io.Writer) (Summary, error) {
	reader, err := audio.NewWAVReader(r)
	if err != nil {
		return Summary{}, err
	}

	settings := d.settings
	if rate := float64(reader.SampleRate()); rate != settings.SampleRate {
		debug.InfoLog.Printf("using file sample rate %v Hz instead of %v Hz", rate, settings.SampleRate)
		settings.SampleRate = rate
		if err := settings.Validate(); err != nil {
			return Summary{}, fmt.Errorf("wav file: %w", err)
		}
	}

	pad := settings.FlushDots * settings.SamplesPerDot()
	return d.run(ctx, settings, func(g *flow.Graph) <-chan []float32 {
		return reader.Stream(g, fileChunk, pad)
	}, w, nil)
}

// DecodeLive decodes samples until the channel is closed, then flushes
// flush_dots dots of silence. cleanup runs before the process exits on a
// panic in the chain.
func (d *Decoder) DecodeLive(ctx context.Context, samples <-chan []float32, w io.Writer, cleanup func()) (Summary, error) {
	if samples == nil {
		return Summary{}, ErrNoAudio
	}

	pad := d.settings.FlushDots * d.settings.SamplesPerDot()
	return d.run(ctx, d.settings, func(g *flow.Graph) <-chan []float32 {
		return liveSource(g, samples, pad)
	}, w, cleanup)
}

// DecodeSymbols decodes textual symbols such as "... --- ..." and writes the
// characters to w.
func (d *Decoder) DecodeSymbols(text string, w io.Writer) (Summary, error) {
	start := time.Now()

	symbols, err := cw.ParseSymbols(text)
	if err != nil {
		return Summary{}, err
	}
	// a closing letter space resolves an unterminated last run
	if len(symbols) > 0 && !symbols[len(symbols)-1].IsSeparator() {
		symbols = append(symbols, cw.LetterSpace)
	}

	chars := cw.NewSymbolDecoder(nil).Process(symbols)
	if err := d.emit(w, chars); err != nil {
		return Summary{}, err
	}

	return Summary{
		Symbols:  uint64(len(symbols)),
		Chars:    uint64(len(chars)),
		Duration: time.Since(start),
	}, nil
}

func (d *Decoder) run(ctx context.Context, settings config.Settings, source func(*flow.Graph) <-chan []float32, w io.Writer, cleanup func()) (Summary, error) {
	start := time.Now()

	goertzel, err := dsp.NewGoertzel(dsp.GoertzelConfig{
		TargetFrequency: settings.ToneFrequency,
		SampleRate:      settings.SampleRate,
		BlockSize:       settings.BlockSize,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("tone filter: %w", err)
	}

	envelope, err := dsp.NewEnvelope(dsp.EnvelopeConfig{
		OverlapPct:      settings.OverlapPct,
		AGCEnabled:      settings.AGCEnabled,
		AGCDecay:        settings.AGCDecay,
		AGCAttack:       settings.AGCAttack,
		AGCWarmupBlocks: settings.AGCWarmupBlocks,
	}, goertzel)
	if err != nil {
		return Summary{}, fmt.Errorf("envelope: %w", err)
	}

	classifier, err := cw.NewClassifierBuilder().
		SamplesPerDot(EnvelopeSamplesPerDot(settings)).
		Accuracy(settings.Accuracy).
		Build()
	if err != nil {
		return Summary{}, fmt.Errorf("classifier: %w", err)
	}

	envStage := &stage[float32, float32]{kernel: envelope, cleanup: cleanup}
	clsStage := &stage[float32, cw.Symbol]{kernel: classifier, cleanup: cleanup}
	decStage := &stage[cw.Symbol, rune]{kernel: cw.NewSymbolDecoder(nil), cleanup: cleanup}

	var chars uint64
	g := flow.NewGraph(ctx)
	amplitude := flow.Connect[float32, float32](g, "envelope", envStage, source(g), flow.DefaultBufferSize)
	symbols := flow.Connect[float32, cw.Symbol](g, "classifier", clsStage, amplitude, flow.DefaultBufferSize)
	text := flow.Connect[cw.Symbol, rune](g, "decoder", decStage, symbols, flow.DefaultBufferSize)
	flow.Sink(g, text, func(chunk []rune) error {
		chars += uint64(len(chunk))
		return d.emit(w, chunk)
	})

	err = g.Wait()
	summary := Summary{
		Samples:  envStage.consumed.Load(),
		Symbols:  decStage.consumed.Load(),
		Chars:    chars,
		Duration: time.Since(start),
	}
	debug.DebugLog.Printf("decode finished: %s", summary)
	return summary, err
}

// emit writes chars to w and every registered writer.
func (d *Decoder) emit(w io.Writer, chars []rune) error {
	if len(chars) == 0 {
		return nil
	}
	if w != nil {
		if _, err := io.WriteString(w, string(chars)); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
	}
	for _, tw := range d.writers {
		if err := tw.Write(chars); err != nil {
			return err
		}
	}
	return nil
}

// liveSource forwards captured audio into g and appends pad samples of
// silence once the capture ends.
func liveSource(g *flow.Graph, samples <-chan []float32, pad int) <-chan []float32 {
	out := make(chan []float32, cap(samples))
	g.Go(func(ctx context.Context) error {
		defer close(out)

		send := func(chunk []float32) error {
			select {
			case out <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for {
			select {
			case chunk, ok := <-samples:
				if !ok {
					debug.DebugLog.Printf("capture ended, flushing %d samples of silence", pad)
					return send(make([]float32, pad))
				}
				if err := send(chunk); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	return out
}

// stage wraps a kernel with panic recovery and counts the items it
// consumed.
type stage[I, O any] struct {
	kernel   flow.Kernel[I, O]
	cleanup  func()
	consumed atomic.Uint64
}

func (s *stage[I, O]) Work(io *flow.WorkIO, in *flow.Input[I], out *flow.Output[O]) {
	defer recovery.HandlePanicFunc(s.cleanup)
	s.kernel.Work(io, in, out)
	s.consumed.Add(uint64(in.Consumed()))
}

// ListAudioDevices returns the capture devices known to the audio backend.
func ListAudioDevices() ([]audio.Device, error) {
	capture := audio.New(audio.DefaultConfig())
	if err := capture.Init(); err != nil {
		return nil, err
	}
	defer func() {
		_ = capture.Close()
	}()

	return capture.ListDevices()
}

// CaptureConfig maps settings onto the capture configuration.
func CaptureConfig(s config.Settings) audio.Config {
	return audio.Config{
		DeviceIndex: s.DeviceIndex,
		SampleRate:  uint32(s.SampleRate),
		Channels:    uint32(s.Channels),
		BufferSize:  uint32(s.BufferSize),
	}
}
