// internal/cw/morse.go
// Package cw implements the CW (Morse code) signal pipeline: the alphabet,
// the encoders producing test signals, the timing classifier turning
// amplitude samples into symbols and the decoder turning symbols into text.
package cw

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Morse code timing ratios (ITU standard), in dot units.
const (
	// DotUnits is the length of a dot
	DotUnits = 1
	// DashUnits is the length of a dash
	DashUnits = 3
	// LetterSpaceUnits is the silence between two characters
	LetterSpaceUnits = 3
	// WordSpaceUnits is the silence between two words
	WordSpaceUnits = 7
)

// Placeholder is emitted for a symbol run that matches no character.
const Placeholder = '_'

var (
	// ErrEmptySequence indicates an alphabet entry needs at least one symbol
	ErrEmptySequence = errors.New("symbol sequence must not be empty")
	// ErrInvalidSequence indicates a letter sequence contains a non dot/dash symbol
	ErrInvalidSequence = errors.New("letter sequence must contain only dots and dashes")
	// ErrInvalidSymbol indicates text that is not part of the symbol notation
	ErrInvalidSymbol = errors.New("invalid symbol notation")
)

// Symbol is one element of the CW alphabet.
type Symbol uint8

const (
	// Dot is a short pulse
	Dot Symbol = iota
	// Dash is a long pulse
	Dash
	// LetterSpace ends a character
	LetterSpace
	// WordSpace ends a word
	WordSpace
	// Unknown stands for a character missing from the alphabet
	Unknown
)

// String renders the symbol in the dot/dash notation.
func (s Symbol) String() string {
	switch s {
	case Dot:
		return "."
	case Dash:
		return "-"
	case LetterSpace:
		return " "
	case WordSpace:
		return "/ "
	default:
		return " <?> "
	}
}

// IsSeparator reports whether s ends a character.
func (s Symbol) IsSeparator() bool {
	return s == LetterSpace || s == WordSpace
}

// FormatSymbols renders symbols in the dot/dash notation.
func FormatSymbols(symbols []Symbol) string {
	var b strings.Builder
	for _, s := range symbols {
		b.WriteString(s.String())
	}
	return b.String()
}

// ParseSymbols reads the dot/dash notation written by FormatSymbols.
// A '/' is a word space and '?' an unknown marker. Any other run of blanks is
// one letter space; blanks trailing a '/' or surrounding a '<?>' belong to
// that marker.
func ParseSymbols(text string) ([]Symbol, error) {
	var symbols []Symbol
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '.':
			symbols = append(symbols, Dot)
		case '-':
			symbols = append(symbols, Dash)
		case '/':
			symbols = append(symbols, WordSpace)
		case '?':
			symbols = append(symbols, Unknown)
		case '<', '>':
			// the angle brackets around an unknown marker
		case ' ', '\t', '\n', '\r':
			j := i
			for j+1 < len(runes) && isBlank(runes[j+1]) {
				j++
			}
			afterMarker := i > 0 && (runes[i-1] == '/' || runes[i-1] == '>')
			beforeMarker := j+1 < len(runes) && runes[j+1] == '<'
			if !afterMarker && !beforeMarker {
				symbols = append(symbols, LetterSpace)
			}
			i = j
		default:
			return nil, fmt.Errorf("%w: %q at %d", ErrInvalidSymbol, r, i)
		}
	}
	return symbols, nil
}

// Alphabet is the bijection between characters and symbol sequences.
// The zero value is an empty alphabet; use NewAlphabet for the Morse table.
type Alphabet struct {
	bySymbols map[string]rune
	byChar    map[rune][]Symbol
}

// NewAlphabet builds the international Morse alphabet: 26 letters, 10 digits,
// common punctuation and the word space. Every call returns an independent
// table.
func NewAlphabet() *Alphabet {
	a := &Alphabet{
		bySymbols: make(map[string]rune, len(morseTable)),
		byChar:    make(map[rune][]Symbol, len(morseTable)),
	}
	for _, e := range morseTable {
		a.put(e.char, e.code)
	}
	return a
}

// Sequence returns the symbols of character r.
func (a *Alphabet) Sequence(r rune) ([]Symbol, bool) {
	seq, ok := a.byChar[r]
	if !ok {
		return nil, false
	}
	return slices.Clone(seq), true
}

// Char returns the character encoded by seq.
func (a *Alphabet) Char(seq []Symbol) (rune, bool) {
	r, ok := a.bySymbols[sequenceKey(seq)]
	return r, ok
}

// Insert binds r to seq, replacing any pair that used either side.
func (a *Alphabet) Insert(r rune, seq []Symbol) error {
	if len(seq) == 0 {
		return ErrEmptySequence
	}
	if !(len(seq) == 1 && seq[0] == WordSpace) {
		for _, s := range seq {
			if s != Dot && s != Dash {
				return ErrInvalidSequence
			}
		}
	}
	if a.byChar == nil {
		a.byChar = make(map[rune][]Symbol)
		a.bySymbols = make(map[string]rune)
	}
	a.Remove(r)
	if old, ok := a.bySymbols[sequenceKey(seq)]; ok {
		a.Remove(old)
	}
	a.put(r, slices.Clone(seq))
	return nil
}

// Remove deletes the entry of r.
func (a *Alphabet) Remove(r rune) {
	seq, ok := a.byChar[r]
	if !ok {
		return
	}
	delete(a.byChar, r)
	delete(a.bySymbols, sequenceKey(seq))
}

// Len returns the number of entries.
func (a *Alphabet) Len() int {
	return len(a.byChar)
}

// Chars returns every character of the alphabet in ascending order.
func (a *Alphabet) Chars() []rune {
	chars := make([]rune, 0, len(a.byChar))
	for r := range a.byChar {
		chars = append(chars, r)
	}
	slices.Sort(chars)
	return chars
}

// Equal reports whether both alphabets hold the same pairs.
func (a *Alphabet) Equal(other *Alphabet) bool {
	if a.Len() != other.Len() {
		return false
	}
	for r, seq := range a.byChar {
		o, ok := other.byChar[r]
		if !ok || !slices.Equal(seq, o) {
			return false
		}
	}
	return true
}

func (a *Alphabet) put(r rune, seq []Symbol) {
	a.byChar[r] = seq
	a.bySymbols[sequenceKey(seq)] = r
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func sequenceKey(seq []Symbol) string {
	key := make([]byte, len(seq))
	for i, s := range seq {
		key[i] = byte(s)
	}
	return string(key)
}

type morseEntry struct {
	char rune
	code []Symbol
}

var morseTable = []morseEntry{
	{'A', []Symbol{Dot, Dash}},
	{'B', []Symbol{Dash, Dot, Dot, Dot}},
	{'C', []Symbol{Dash, Dot, Dash, Dot}},
	{'D', []Symbol{Dash, Dot, Dot}},
	{'E', []Symbol{Dot}},
	{'F', []Symbol{Dot, Dot, Dash, Dot}},
	{'G', []Symbol{Dash, Dash, Dot}},
	{'H', []Symbol{Dot, Dot, Dot, Dot}},
	{'I', []Symbol{Dot, Dot}},
	{'J', []Symbol{Dot, Dash, Dash, Dash}},
	{'K', []Symbol{Dash, Dot, Dash}},
	{'L', []Symbol{Dot, Dash, Dot, Dot}},
	{'M', []Symbol{Dash, Dash}},
	{'N', []Symbol{Dash, Dot}},
	{'O', []Symbol{Dash, Dash, Dash}},
	{'P', []Symbol{Dot, Dash, Dash, Dot}},
	{'Q', []Symbol{Dash, Dash, Dot, Dash}},
	{'R', []Symbol{Dot, Dash, Dot}},
	{'S', []Symbol{Dot, Dot, Dot}},
	{'T', []Symbol{Dash}},
	{'U', []Symbol{Dot, Dot, Dash}},
	{'V', []Symbol{Dot, Dot, Dot, Dash}},
	{'W', []Symbol{Dot, Dash, Dash}},
	{'X', []Symbol{Dash, Dot, Dot, Dash}},
	{'Y', []Symbol{Dash, Dot, Dash, Dash}},
	{'Z', []Symbol{Dash, Dash, Dot, Dot}},
	{'0', []Symbol{Dash, Dash, Dash, Dash, Dash}},
	{'1', []Symbol{Dot, Dash, Dash, Dash, Dash}},
	{'2', []Symbol{Dot, Dot, Dash, Dash, Dash}},
	{'3', []Symbol{Dot, Dot, Dot, Dash, Dash}},
	{'4', []Symbol{Dot, Dot, Dot, Dot, Dash}},
	{'5', []Symbol{Dot, Dot, Dot, Dot, Dot}},
	{'6', []Symbol{Dash, Dot, Dot, Dot, Dot}},
	{'7', []Symbol{Dash, Dash, Dot, Dot, Dot}},
	{'8', []Symbol{Dash, Dash, Dash, Dot, Dot}},
	{'9', []Symbol{Dash, Dash, Dash, Dash, Dot}},
	{'.', []Symbol{Dot, Dash, Dot, Dash, Dot, Dash}},
	{',', []Symbol{Dash, Dash, Dot, Dot, Dash, Dash}},
	{'?', []Symbol{Dot, Dot, Dash, Dash, Dot, Dot}},
	{';', []Symbol{Dash, Dot, Dash, Dot, Dash, Dot}},
	{':', []Symbol{Dash, Dash, Dash, Dot, Dot, Dot}},
	{'-', []Symbol{Dash, Dot, Dot, Dot, Dot, Dash}},
	{'/', []Symbol{Dash, Dot, Dot, Dash, Dot}},
	{'"', []Symbol{Dot, Dash, Dot, Dot, Dash, Dot}},
	{'\'', []Symbol{Dot, Dash, Dash, Dash, Dot}},
	{' ', []Symbol{WordSpace}},
}
