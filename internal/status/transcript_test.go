package status

import (
	"slices"
	"testing"
	"time"
)

func TestTranscript_Write(t *testing.T) {
	tr := NewTranscript(0)

	for _, chunk := range []string{"CQ C", "Q DE ", "", "TEST"} {
		if err := tr.Write([]rune(chunk)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	if got := tr.Text(); got != "CQ CQ DE TEST" {
		t.Errorf("Text() = %q, want %q", got, "CQ CQ DE TEST")
	}
	if got := tr.Words(); !slices.Equal(got, []string{"CQ", "CQ", "DE", "TEST"}) {
		t.Errorf("Words() = %q", got)
	}
	if tr.Total() != 13 {
		t.Errorf("Total() = %d, want 13", tr.Total())
	}
}

func TestTranscript_Limit(t *testing.T) {
	tr := NewTranscript(5)

	_ = tr.Write([]rune("ABCDEFG"))
	_ = tr.Write([]rune("HI"))

	if got := tr.Text(); got != "EFGHI" {
		t.Errorf("Text() = %q, want %q", got, "EFGHI")
	}
	if tr.Total() != 9 {
		t.Errorf("Total() = %d, want 9", tr.Total())
	}
}

func TestTranscript_Reset(t *testing.T) {
	tr := NewTranscript(0)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	if !tr.Updated().IsZero() {
		t.Error("Updated() set before any write")
	}
	_ = tr.Write([]rune("73"))
	if !tr.Updated().Equal(fixed) {
		t.Errorf("Updated() = %v, want %v", tr.Updated(), fixed)
	}

	tr.Reset()
	if tr.Text() != "" || tr.Total() != 0 || !tr.Updated().IsZero() {
		t.Errorf("after Reset: text %q total %d updated %v", tr.Text(), tr.Total(), tr.Updated())
	}
}
