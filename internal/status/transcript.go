// internal/status/transcript.go
package status

import (
	"strings"
	"sync"
	"time"
)

// Transcript accumulates decoded text for the status endpoints. It keeps
// at most limit characters, dropping the oldest.
type Transcript struct {
	mu      sync.RWMutex
	text    []rune
	limit   int
	total   uint64
	updated time.Time
	now     func() time.Time
}

// NewTranscript creates a transcript holding up to limit characters.
// A limit of zero or less keeps everything.
func NewTranscript(limit int) *Transcript {
	return &Transcript{limit: limit, now: time.Now}
}

// Write appends decoded characters.
func (t *Transcript) Write(chars []rune) error {
	if len(chars) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.text = append(t.text, chars...)
	if t.limit > 0 && len(t.text) > t.limit {
		t.text = t.text[:copy(t.text, t.text[len(t.text)-t.limit:])]
	}
	t.total += uint64(len(chars))
	t.updated = t.now()
	return nil
}

// Text returns the retained text.
func (t *Transcript) Text() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return string(t.text)
}

// Words returns the retained text split into words.
func (t *Transcript) Words() []string {
	return strings.Fields(t.Text())
}

// Total returns the number of characters written since creation or the
// last Reset, including those no longer retained.
func (t *Transcript) Total() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// Updated returns when the last character arrived, or the zero time.
func (t *Transcript) Updated() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updated
}

// Reset clears the transcript.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = t.text[:0]
	t.total = 0
	t.updated = time.Time{}
}
