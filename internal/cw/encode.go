// internal/cw/encode.go
package cw

// SymbolToBaseband renders one symbol as amplitude samples, samplesPerDot
// samples per dot unit. The silence following a pulse is part of the pulse.
// A LetterSpace never occurs inside a character and panics.
func SymbolToBaseband(s Symbol, samplesPerDot int) []float32 {
	switch s {
	case Dot:
		return keyed(DotUnits*samplesPerDot, samplesPerDot)
	case Dash:
		return keyed(DashUnits*samplesPerDot, samplesPerDot)
	case LetterSpace:
		panic("cw: LetterSpace shouldn't occur in a character")
	case WordSpace:
		// the trailing silence of the previous character adds the rest
		return make([]float32, 2*samplesPerDot)
	default:
		return make([]float32, 3*samplesPerDot)
	}
}

// CharToBaseband returns a function rendering one character at a time as
// baseband samples: 1.0 while keyed, 0.0 otherwise. Every rendered character
// ends with two dots of silence, so concatenating the results gives correct
// letter and word spacing. Characters missing from the alphabet render as
// three dots of silence.
func CharToBaseband(samplesPerDot int) func(r rune) []float32 {
	alphabet := NewAlphabet()

	return func(r rune) []float32 {
		seq, ok := alphabet.Sequence(r)
		if !ok {
			seq = []Symbol{Unknown}
		}
		var out []float32
		for _, s := range seq {
			out = append(out, SymbolToBaseband(s, samplesPerDot)...)
		}
		return append(out, make([]float32, 2*samplesPerDot)...)
	}
}

// MessageToBaseband renders a whole message with CharToBaseband.
func MessageToBaseband(msg []rune, samplesPerDot int) []float32 {
	render := CharToBaseband(samplesPerDot)
	var out []float32
	for _, r := range msg {
		out = append(out, render(r)...)
	}
	return out
}

// MsgToCW converts a message of uppercase characters into symbols. A known
// character becomes its sequence followed by a LetterSpace, a space becomes
// a single WordSpace and an unknown character a single Unknown.
func MsgToCW(msg []rune) []Symbol {
	alphabet := NewAlphabet()

	var out []Symbol
	for _, r := range msg {
		seq, ok := alphabet.Sequence(r)
		switch {
		case !ok:
			out = append(out, Unknown)
		case seq[0] == WordSpace:
			out = append(out, WordSpace)
		default:
			out = append(out, seq...)
			out = append(out, LetterSpace)
		}
	}
	return out
}

func keyed(on, off int) []float32 {
	out := make([]float32, on+off)
	for i := range on {
		out[i] = 1.0
	}
	return out
}
