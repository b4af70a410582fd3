// internal/audio/capture.go
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
	"github.com/womat/debug"
)

var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrAlreadyRunning = errors.New("audio capture already running")
	ErrNotRunning     = errors.New("audio capture not running")
	ErrDeviceIndex    = errors.New("device index out of range")
)

// Config holds audio capture configuration
type Config struct {
	DeviceIndex int    // -1 for default device (from config: device_index)
	SampleRate  uint32 // e.g., 48000 (from config: sample_rate)
	Channels    uint32 // captured channels, downmixed to mono (from config: channels)
	BufferSize  uint32 // frames per callback (from config: buffer_size)
}

// DefaultConfig returns sensible defaults for CW decoding
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  48000,
		Channels:    1,
		BufferSize:  512,
	}
}

// Device describes a capture device.
type Device struct {
	Index     int
	Name      string
	IsDefault bool
}

// Capture records mono audio from a sound card. Samples are delivered on
// the Samples channel, which feeds the decode flowgraph directly.
type Capture struct {
	config  Config
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
	mu      sync.RWMutex

	closed    atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64

	// Samples carries mono float32 audio normalised to -1.0..1.0
	Samples chan []float32
}

// New creates a new audio capture instance
func New(cfg Config) *Capture {
	return &Capture{
		config:  cfg,
		Samples: make(chan []float32, 64),
	}
}

// Init initializes the audio backend
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		debug.TraceLog.Printf("malgo: %s", message)
	})
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx

	return nil
}

// ListDevices returns the available capture devices
func (c *Capture) ListDevices() ([]Device, error) {
	infos, err := c.deviceInfos()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{Index: i, Name: info.Name(), IsDefault: info.IsDefault != 0}
	}
	return devices, nil
}

func (c *Capture) deviceInfos() ([]malgo.DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Start begins audio capture. Capture stops when ctx is cancelled.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if c.ctx == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = c.config.SampleRate
	deviceConfig.PeriodSizeInFrames = c.config.BufferSize
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = c.config.Channels

	if c.config.DeviceIndex >= 0 {
		infos, err := c.deviceInfos()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(infos) {
			return fmt.Errorf("%w: %d (have %d devices)", ErrDeviceIndex, c.config.DeviceIndex, len(infos))
		}
		deviceConfig.Capture.DeviceID = infos[c.config.DeviceIndex].ID.Pointer()
	}

	channels := int(max(c.config.Channels, 1))
	onRecvFrames := func(_, inputSamples []byte, _ uint32) {
		if len(inputSamples) == 0 || c.closed.Load() {
			return
		}
		// the device buffer is reused after the callback returns
		samples := downmix(bytesAsFloat32(inputSamples), channels)
		if channels == 1 {
			samples = copyFloat32Slice(samples)
		}
		c.safeSend(samples)
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.running = true
	c.mu.Unlock()

	debug.InfoLog.Printf("capturing %d Hz, %d channel(s)", c.config.SampleRate, channels)

	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	return nil
}

// safeSend delivers samples without blocking the audio thread. Samples are
// dropped when the consumer falls behind.
func (c *Capture) safeSend(samples []float32) {
	defer func() {
		// Close may race with the audio callback
		_ = recover()
	}()

	select {
	case c.Samples <- samples:
	default:
		if n := c.dropped.Add(1); n == 1 || n%100 == 0 {
			debug.ErrorLog.Printf("consumer too slow, %d buffers dropped", n)
		}
	}
}

// Dropped returns the number of sample buffers discarded so far.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// Stop stops audio capture
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}
	c.stopDevice()
	return nil
}

func (c *Capture) stopDevice() {
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	c.running = false
}

// Close releases all audio resources and closes Samples, which ends the
// flowgraph reading from it.
func (c *Capture) Close() error {
	c.closed.Store(true)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.stopDevice()
	}

	var err error
	if c.ctx != nil {
		if uerr := c.ctx.Uninit(); uerr != nil {
			err = fmt.Errorf("uninit context: %w", uerr)
		}
		c.ctx.Free()
		c.ctx = nil
	}

	c.closeOnce.Do(func() {
		close(c.Samples)
	})
	return err
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// bytesAsFloat32 reinterprets little-endian float32 bytes without copying.
// It returns nil when data holds less than one sample.
func bytesAsFloat32(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func copyFloat32Slice(s []float32) []float32 {
	if s == nil {
		return nil
	}
	out := make([]float32, len(s))
	copy(out, s)
	return out
}

// downmix averages interleaved frames into a new mono slice. Mono input is
// returned unchanged.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := range mono {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
