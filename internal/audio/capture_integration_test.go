//go:build integration

package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Run with a sound card present: go test -tags=integration ./internal/audio

func startCapture(t *testing.T, cfg Config) (*Capture, context.CancelFunc) {
	t.Helper()

	c := New(cfg)
	if err := c.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		cancel()
		_ = c.Close()
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = c.Close()
	})
	return c, cancel
}

func TestCapture_Devices_Integration(t *testing.T) {
	c := New(DefaultConfig())
	defer func() {
		_ = c.Close()
	}()
	if err := c.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	devices, err := c.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	for i, d := range devices {
		if d.Index != i {
			t.Errorf("device %q has index %d, want %d", d.Name, d.Index, i)
		}
	}

	cfg := DefaultConfig()
	cfg.DeviceIndex = len(devices)
	bad := New(cfg)
	defer func() {
		_ = bad.Close()
	}()
	if err := bad.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := bad.Start(context.Background()); !errors.Is(err, ErrDeviceIndex) {
		t.Errorf("Start() error = %v, want %v", err, ErrDeviceIndex)
	}
}

func TestCapture_MonoSamples_Integration(t *testing.T) {
	tests := []struct {
		name     string
		channels uint32
	}{
		{"mono", 1},
		{"stereo downmixed", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Channels = tt.channels
			c, _ := startCapture(t, cfg)

			select {
			case samples := <-c.Samples:
				if len(samples) == 0 || len(samples) > int(cfg.BufferSize)*4 {
					t.Errorf("received %d samples per buffer", len(samples))
				}
				for i, s := range samples {
					if s < -1 || s > 1 {
						t.Fatalf("sample %d = %v outside -1..1", i, s)
					}
				}
			case <-time.After(2 * time.Second):
				t.Fatal("no samples within 2s")
			}
		})
	}
}

func TestCapture_Lifecycle_Integration(t *testing.T) {
	c, cancel := startCapture(t, DefaultConfig())

	if !c.IsRunning() {
		t.Fatal("IsRunning() = false after Start()")
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyRunning)
	}

	cancel()

	// cancellation closes Samples, which ends a flowgraph reading it
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Samples:
			if !ok {
				if c.IsRunning() {
					t.Error("IsRunning() = true after cancellation")
				}
				return
			}
		case <-timeout:
			t.Fatal("Samples not closed after cancellation")
		}
	}
}
