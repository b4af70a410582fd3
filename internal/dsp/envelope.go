// internal/dsp/envelope.go
package dsp

import (
	"errors"

	"github.com/ColonelBlimp/cwblocks/internal/flow"
	"github.com/womat/debug"
)

var (
	// ErrInvalidOverlap indicates overlap percentage must be 0-99
	ErrInvalidOverlap = errors.New("overlap percentage must be between 0 and 99")
	// ErrInvalidAGCDecay indicates AGC decay must be between 0 and 1
	ErrInvalidAGCDecay = errors.New("agc decay must be between 0.0 and 1.0")
	// ErrInvalidAGCAttack indicates AGC attack must be between 0 and 1
	ErrInvalidAGCAttack = errors.New("agc attack must be between 0.0 and 1.0")
	// ErrInvalidAGCWarmup indicates AGC warmup blocks must be non-negative
	ErrInvalidAGCWarmup = errors.New("agc warmup blocks must be non-negative")
	// ErrGoertzelRequired indicates Goertzel instance is required
	ErrGoertzelRequired = errors.New("goertzel instance is required")
)

// minPeak keeps the AGC divisor away from zero.
const minPeak = 0.001

// EnvelopeConfig holds configuration for the envelope detector.
type EnvelopeConfig struct {
	// OverlapPct is the block overlap percentage 0-99 (from config: overlap_pct)
	OverlapPct int
	// AGCEnabled enables automatic gain control (from config: agc_enabled)
	AGCEnabled bool
	// AGCDecay is the peak decay factor per block (from config: agc_decay)
	AGCDecay float64
	// AGCAttack is how fast the peak follows louder signals (from config: agc_attack)
	AGCAttack float64
	// AGCWarmupBlocks is the number of blocks used to calibrate the AGC before
	// any envelope is reported (from config: agc_warmup_blocks)
	AGCWarmupBlocks int
}

// Envelope turns audio into the normalised [0,1] amplitude of the CW tone,
// one value per hop. It is the front end of the timing classifier: a tone
// at full scale (or any level, with AGC) reads 1, silence reads 0.
type Envelope struct {
	config    EnvelopeConfig
	goertzel  *Goertzel
	blockSize int
	hopSize   int

	// samples of the block being assembled
	buffer []float32

	agcPeak       float64
	warmupCounter int
}

// NewEnvelope creates an envelope detector measuring with goertzel.
func NewEnvelope(cfg EnvelopeConfig, goertzel *Goertzel) (*Envelope, error) {
	if goertzel == nil {
		return nil, ErrGoertzelRequired
	}
	if cfg.OverlapPct < 0 || cfg.OverlapPct >= 100 {
		return nil, ErrInvalidOverlap
	}
	if cfg.AGCDecay < 0 || cfg.AGCDecay > 1 {
		return nil, ErrInvalidAGCDecay
	}
	if cfg.AGCAttack < 0 || cfg.AGCAttack > 1 {
		return nil, ErrInvalidAGCAttack
	}
	if cfg.AGCWarmupBlocks < 0 {
		return nil, ErrInvalidAGCWarmup
	}

	blockSize := goertzel.BlockSize()
	hopSize := HopSize(blockSize, cfg.OverlapPct)

	debug.DebugLog.Printf("envelope: block %d samples, hop %d samples", blockSize, hopSize)

	return &Envelope{
		config:    cfg,
		goertzel:  goertzel,
		blockSize: blockSize,
		hopSize:   hopSize,
		buffer:    make([]float32, 0, blockSize),
		agcPeak:   1.0,
	}, nil
}

// HopSize returns the number of samples between the starts of two
// consecutive blocks.
func HopSize(blockSize, overlapPct int) int {
	hop := blockSize - (blockSize*overlapPct)/100
	if hop < 1 {
		hop = 1
	}
	return hop
}

// HopSize returns the number of audio samples per envelope value.
func (e *Envelope) HopSize() int {
	return e.hopSize
}

// Work implements flow.Kernel. A trailing partial block is discarded once
// the input is finished.
func (e *Envelope) Work(io *flow.WorkIO, in *flow.Input[float32], out *flow.Output[float32]) {
	o := out.Slice()
	samples := in.Slice()
	consumed, produced := 0, 0

	for {
		if len(e.buffer) == e.blockSize {
			if produced == len(o) {
				break
			}
			o[produced] = e.processBlock()
			produced++
			e.slide()
			continue
		}
		if consumed == len(samples) {
			break
		}
		n := min(e.blockSize-len(e.buffer), len(samples)-consumed)
		e.buffer = append(e.buffer, samples[consumed:consumed+n]...)
		consumed += n
	}

	in.Consume(consumed)
	out.Produce(produced)

	if len(e.buffer) == e.blockSize {
		io.CallAgain = true
		return
	}
	if in.Finished() && consumed == len(samples) {
		io.Finished = true
	}
}

// Process returns the envelope of samples. It is the unbuffered form of
// Work.
func (e *Envelope) Process(samples []float32) []float32 {
	var out []float32
	for len(samples) > 0 {
		n := min(e.blockSize-len(e.buffer), len(samples))
		e.buffer = append(e.buffer, samples[:n]...)
		samples = samples[n:]
		for len(e.buffer) == e.blockSize {
			out = append(out, e.processBlock())
			e.slide()
		}
	}
	return out
}

// slide drops the oldest hop from the block buffer.
func (e *Envelope) slide() {
	if e.hopSize >= len(e.buffer) {
		e.buffer = e.buffer[:0]
		return
	}
	copy(e.buffer, e.buffer[e.hopSize:])
	e.buffer = e.buffer[:len(e.buffer)-e.hopSize]
}

// processBlock measures the full block buffer.
func (e *Envelope) processBlock() float32 {
	magnitude := e.goertzel.magnitude(e.buffer)

	if e.config.AGCEnabled {
		if e.warmupCounter < e.config.AGCWarmupBlocks {
			e.warmup(magnitude)
			return 0
		}
		magnitude = e.applyAGC(magnitude)
	}

	return float32(clamp(magnitude))
}

// warmup calibrates the peak to the loudest block seen, without decay.
func (e *Envelope) warmup(magnitude float64) {
	e.warmupCounter++
	if magnitude <= minPeak {
		return
	}
	if magnitude > e.agcPeak || e.warmupCounter == 1 {
		e.agcPeak = magnitude
	}
}

// applyAGC normalises magnitude by the tracked peak.
func (e *Envelope) applyAGC(magnitude float64) float64 {
	if magnitude > e.agcPeak {
		e.agcPeak += e.config.AGCAttack * (magnitude - e.agcPeak)
	} else {
		e.agcPeak *= e.config.AGCDecay
	}
	if e.agcPeak < minPeak {
		e.agcPeak = minPeak
	}
	return magnitude / e.agcPeak
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// AGCPeak returns the current AGC peak value
func (e *Envelope) AGCPeak() float64 {
	return e.agcPeak
}

// Reset discards the partial block and restarts AGC calibration.
func (e *Envelope) Reset() {
	e.buffer = e.buffer[:0]
	e.agcPeak = 1.0
	e.warmupCounter = 0
}
