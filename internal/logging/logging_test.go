package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/womat/debug"
)

func TestFlag(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"standard", debug.Standard},
		{"", debug.Standard},
		{"debug", debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug},
		{"trace", debug.Full},
		{"full", debug.Full},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := Flag(tt.level)
			if err != nil {
				t.Fatalf("Flag() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Flag(%q) = %d, want %d", tt.level, got, tt.want)
			}
		})
	}
}

func TestFlag_Unknown(t *testing.T) {
	if _, err := Flag("verbose"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("Flag() error = %v, want %v", err, ErrUnknownLevel)
	}
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cwblocks.log")

	closer, err := Setup("debug", path)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	debug.DebugLog.Print("classifier ready")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	t.Cleanup(func() { _, _ = Setup("standard", "stderr") })

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "classifier ready") {
		t.Errorf("log file = %q, want the debug message", content)
	}
}

func TestSetup_StandardStreams(t *testing.T) {
	for _, file := range []string{"stderr", "stdout"} {
		closer, err := Setup("standard", file)
		if err != nil {
			t.Fatalf("Setup(%q) error = %v", file, err)
		}
		if err := closer.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}
	_, _ = Setup("standard", "stderr")

	// the stream is still usable after Close
	if _, err := os.Stderr.Write(nil); err != nil {
		t.Errorf("stderr closed: %v", err)
	}
}

func TestSetup_Errors(t *testing.T) {
	if _, err := Setup("verbose", "stderr"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("Setup() error = %v, want %v", err, ErrUnknownLevel)
	}
	if _, err := Setup("standard", filepath.Join(t.TempDir(), "missing", "x.log")); err == nil {
		t.Error("Setup() should fail for a file in a missing directory")
	}
}
