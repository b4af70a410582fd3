// internal/cw/classifier.go
package cw

import (
	"errors"
	"math"

	"github.com/ColonelBlimp/cwblocks/internal/flow"
	"github.com/womat/debug"
)

// Threshold separates signal present from signal absent on the normalised
// [0,1] amplitude the classifier expects.
const Threshold = 0.5

// Defaults used by ClassifierBuilder.
const (
	DefaultSamplesPerDot = 60
	DefaultAccuracy      = 90
)

var (
	// ErrInvalidSamplesPerDot indicates samples per dot must be positive
	ErrInvalidSamplesPerDot = errors.New("samples per dot must be positive")
	// ErrInvalidAccuracy indicates accuracy must be a percentage
	ErrInvalidAccuracy = errors.New("accuracy must be between 0 and 100")
)

// Range is an inclusive interval of sample counts.
type Range struct {
	Min int
	Max int
}

// Contains reports whether n lies inside the range.
func (r Range) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// Timing holds the tolerance windows derived from the dot length and the
// required accuracy.
type Timing struct {
	SamplesPerDot int
	// Tolerance is the slack in samples granted on both sides of every window
	Tolerance   int
	Dot         Range
	Dash        Range
	LetterSpace Range
	WordSpace   Range
}

// NewTiming derives the windows. accuracy is a percentage: 100 accepts only
// exact multiples of samplesPerDot, 0 grants a full dot of slack.
func NewTiming(samplesPerDot, accuracy int) (Timing, error) {
	if samplesPerDot <= 0 {
		return Timing{}, ErrInvalidSamplesPerDot
	}
	if accuracy < 0 || accuracy > 100 {
		return Timing{}, ErrInvalidAccuracy
	}

	spd := float32(samplesPerDot)
	tolerance := int(spd - (float32(accuracy)/100)*spd)

	window := func(units int) Range {
		return Range{Min: units*samplesPerDot - tolerance, Max: units*samplesPerDot + tolerance}
	}

	return Timing{
		SamplesPerDot: samplesPerDot,
		Tolerance:     tolerance,
		Dot:           window(DotUnits),
		Dash:          window(DashUnits),
		LetterSpace:   window(LetterSpaceUnits),
		WordSpace:     window(WordSpaceUnits),
	}, nil
}

// Watchdog returns the silence length after which a transmission is
// considered ended.
func (t Timing) Watchdog() int {
	return t.Tolerance + WordSpaceUnits*t.SamplesPerDot
}

// ClassifierConfig holds configuration for the timing classifier.
type ClassifierConfig struct {
	// SamplesPerDot is the dot length in samples (from config: samples per dot derived from wpm)
	SamplesPerDot int
	// Accuracy is how precisely the sender must keep the time slots, 0-100 (from config: accuracy)
	Accuracy int
}

// Classifier turns amplitude samples into timing symbols. Pulses become dots
// and dashes, gaps become letter and word spaces; durations matching no
// window are dropped. After a word space worth of silence following a
// pulse, a LetterSpace and a WordSpace are emitted once to close the
// transmission.
type Classifier struct {
	timing Timing

	sampleCount       int
	powerBefore       float32
	endOfTransmission bool

	// symbols produced but not yet delivered for lack of output space
	pending []Symbol
}

// NewClassifier creates a timing classifier.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	timing, err := NewTiming(cfg.SamplesPerDot, cfg.Accuracy)
	if err != nil {
		return nil, err
	}

	debug.DebugLog.Printf("samples per dot: %d", timing.SamplesPerDot)
	debug.DebugLog.Printf("dot range: %v", timing.Dot)
	debug.DebugLog.Printf("dash range: %v", timing.Dash)
	debug.DebugLog.Printf("letterspace range: %v", timing.LetterSpace)
	debug.DebugLog.Printf("wordspace range: %v", timing.WordSpace)

	return &Classifier{
		timing:            timing,
		endOfTransmission: true,
		pending:           make([]Symbol, 0, 2),
	}, nil
}

// Timing returns the tolerance windows in use.
func (c *Classifier) Timing() Timing {
	return c.timing
}

// Work implements flow.Kernel. Samples are consumed one at a time and
// consumption stops as soon as a symbol does not fit the offered output.
func (c *Classifier) Work(io *flow.WorkIO, in *flow.Input[float32], out *flow.Output[Symbol]) {
	o := out.Slice()
	if len(o) == 0 {
		return
	}

	produced := c.drain(o)
	consumed := 0
	samples := in.Slice()

	if len(c.pending) == 0 {
		for _, sample := range samples {
			c.step(sample)
			consumed++
			produced += c.drain(o[produced:])
			if len(c.pending) > 0 {
				break
			}
		}
	}

	in.Consume(consumed)
	out.Produce(produced)

	if len(c.pending) > 0 {
		io.CallAgain = true
		return
	}
	if in.Finished() && consumed == len(samples) {
		io.Finished = true
	}
}

// Process classifies samples and returns the symbols they complete. It is
// the unbuffered form of Work.
func (c *Classifier) Process(samples []float32) []Symbol {
	var out []Symbol
	for _, sample := range samples {
		c.step(sample)
		out = append(out, c.pending...)
		c.pending = c.pending[:0]
	}
	return out
}

// step advances the state machine by one sample, queueing any symbol.
func (c *Classifier) step(sample float32) {
	power := float32(math.Abs(float64(sample)))
	t := &c.timing

	if power > Threshold && c.powerBefore <= Threshold {
		// signal starts, the gap before it ended
		switch n := c.sampleCount; {
		case t.WordSpace.Contains(n):
			c.pending = append(c.pending, WordSpace)
			debug.TraceLog.Printf("signal was paused for: %d -> %v", n, WordSpace)
		case t.LetterSpace.Contains(n):
			c.pending = append(c.pending, LetterSpace)
			debug.TraceLog.Printf("signal was paused for: %d -> %v", n, LetterSpace)
		case t.Dot.Contains(n):
			// gap between two pulses of one character
		default:
			debug.TraceLog.Printf("signal pause not a symbol: %d samples", n)
		}
		c.sampleCount = 0
		c.endOfTransmission = false
	}

	if power <= Threshold && c.powerBefore > Threshold {
		// signal stops, the pulse ended
		switch n := c.sampleCount; {
		case t.Dot.Contains(n):
			c.pending = append(c.pending, Dot)
		case t.Dash.Contains(n):
			c.pending = append(c.pending, Dash)
		default:
			debug.TraceLog.Printf("signal length not a symbol: %d samples", n)
		}
		c.sampleCount = 0
	}

	if c.sampleCount > t.Watchdog() && !c.endOfTransmission {
		c.endOfTransmission = true
		c.pending = append(c.pending, LetterSpace, WordSpace)
		debug.TraceLog.Printf("transmission ended after %d samples of silence", c.sampleCount)
	}

	if c.sampleCount < math.MaxInt {
		c.sampleCount++
	}
	c.powerBefore = power
}

// drain moves queued symbols into o and returns how many were written.
func (c *Classifier) drain(o []Symbol) int {
	n := copy(o, c.pending)
	c.pending = c.pending[:copy(c.pending, c.pending[n:])]
	return n
}

// Reset returns the classifier to its initial state.
func (c *Classifier) Reset() {
	c.sampleCount = 0
	c.powerBefore = 0
	c.endOfTransmission = true
	c.pending = c.pending[:0]
}

// ClassifierBuilder configures a Classifier with defaults of 60 samples per
// dot and 90% accuracy.
type ClassifierBuilder struct {
	cfg ClassifierConfig
}

// NewClassifierBuilder returns a builder holding the defaults.
func NewClassifierBuilder() *ClassifierBuilder {
	return &ClassifierBuilder{cfg: ClassifierConfig{
		SamplesPerDot: DefaultSamplesPerDot,
		Accuracy:      DefaultAccuracy,
	}}
}

// SamplesPerDot sets the dot length in samples.
func (b *ClassifierBuilder) SamplesPerDot(n int) *ClassifierBuilder {
	b.cfg.SamplesPerDot = n
	return b
}

// Accuracy sets the required timing accuracy in percent.
func (b *ClassifierBuilder) Accuracy(pct int) *ClassifierBuilder {
	b.cfg.Accuracy = pct
	return b
}

// Build creates the classifier.
func (b *ClassifierBuilder) Build() (*Classifier, error) {
	return NewClassifier(b.cfg)
}
