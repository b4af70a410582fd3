// internal/cw/decoder.go
package cw

import (
	"slices"

	"github.com/ColonelBlimp/cwblocks/internal/flow"
	"github.com/womat/debug"
)

// SymbolDecoder turns symbols into characters. Dots and dashes accumulate
// until a separator arrives; the run is then looked up in the alphabet.
// A run matching no character decodes to Placeholder.
type SymbolDecoder struct {
	alphabet *Alphabet

	// symbols received since the last separator
	symbols []Symbol
	// characters resolved but not yet delivered for lack of output space
	pending []rune
}

// NewSymbolDecoder creates a decoder using alphabet, or the Morse alphabet
// when alphabet is nil.
func NewSymbolDecoder(alphabet *Alphabet) *SymbolDecoder {
	if alphabet == nil {
		alphabet = NewAlphabet()
	}
	return &SymbolDecoder{alphabet: alphabet}
}

// Work implements flow.Kernel. New input is only accepted once every
// previously resolved character has been delivered.
func (d *SymbolDecoder) Work(io *flow.WorkIO, in *flow.Input[Symbol], out *flow.Output[rune]) {
	o := out.Slice()
	produced := d.drain(o)

	if len(d.pending) == 0 {
		symbols := in.Slice()
		d.symbols = append(d.symbols, symbols...)
		in.Consume(len(symbols))
		d.resolve()
		produced += d.drain(o[produced:])
	}

	out.Produce(produced)

	if len(d.pending) > 0 {
		io.CallAgain = true
		return
	}
	if in.Finished() {
		io.Finished = true
	}
}

// Process decodes symbols and returns the characters they complete. It is
// the unbuffered form of Work.
func (d *SymbolDecoder) Process(symbols []Symbol) []rune {
	d.symbols = append(d.symbols, symbols...)
	d.resolve()
	out := d.pending
	d.pending = nil
	return out
}

// Pending returns the symbols still waiting for a separator.
func (d *SymbolDecoder) Pending() []Symbol {
	return slices.Clone(d.symbols)
}

// resolve splits the accumulated symbols after every separator and looks up
// each complete run. Symbols after the last separator stay buffered.
func (d *SymbolDecoder) resolve() {
	if !slices.ContainsFunc(d.symbols, Symbol.IsSeparator) {
		return
	}

	start := 0
	for i, s := range d.symbols {
		if !s.IsSeparator() {
			continue
		}
		run := d.symbols[start:i]
		if s == WordSpace {
			if len(run) > 0 {
				d.pending = append(d.pending, d.lookup(run))
			}
			d.pending = append(d.pending, d.lookup([]Symbol{WordSpace}))
		} else {
			d.pending = append(d.pending, d.lookup(run))
		}
		start = i + 1
	}

	d.symbols = d.symbols[:copy(d.symbols, d.symbols[start:])]
}

func (d *SymbolDecoder) lookup(run []Symbol) rune {
	r, ok := d.alphabet.Char(run)
	if !ok {
		debug.TraceLog.Printf("no character for %q", FormatSymbols(run))
		return Placeholder
	}
	return r
}

// drain moves resolved characters into o and returns how many were written.
func (d *SymbolDecoder) drain(o []rune) int {
	n := copy(o, d.pending)
	d.pending = d.pending[:copy(d.pending, d.pending[n:])]
	return n
}

// Reset discards buffered symbols and characters.
func (d *SymbolDecoder) Reset() {
	d.symbols = d.symbols[:0]
	d.pending = d.pending[:0]
}
