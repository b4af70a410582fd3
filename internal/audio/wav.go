// internal/audio/wav.go
package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ColonelBlimp/cwblocks/internal/flow"
	"github.com/mjibson/go-dsp/wav"
	"github.com/womat/debug"
)

// ErrNoChannels indicates the WAV header declares zero channels
var ErrNoChannels = errors.New("wav file has no channels")

// WAVReader streams a WAV file as mono float32 samples.
type WAVReader struct {
	wav       *wav.Wav
	channels  int
	remaining int
}

// NewWAVReader parses the WAV header from r.
func NewWAVReader(r io.Reader) (*WAVReader, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, fmt.Errorf("read wav header: %w", err)
	}
	if w.Header.NumChannels == 0 {
		return nil, ErrNoChannels
	}

	debug.DebugLog.Printf("wav: %d Hz, %d channel(s), %d bit, %v",
		w.Header.SampleRate, w.Header.NumChannels, w.Header.BitsPerSample, w.Duration)

	return &WAVReader{
		wav:       w,
		channels:  int(w.Header.NumChannels),
		remaining: w.Samples,
	}, nil
}

// SampleRate returns the sample rate declared in the header.
func (r *WAVReader) SampleRate() int {
	return int(r.wav.Header.SampleRate)
}

// Read returns up to frames mono samples. It returns io.EOF once the data
// chunk is exhausted.
func (r *WAVReader) Read(frames int) ([]float32, error) {
	n := min(frames*r.channels, r.remaining)
	if n <= 0 {
		return nil, io.EOF
	}

	samples, err := r.wav.ReadFloats(n)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || len(samples) == 0 {
		// a truncated data chunk ends the stream
		r.remaining = 0
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("read wav samples: %w", err)
	}

	r.remaining -= len(samples)
	return downmix(samples, r.channels), nil
}

// Stream feeds the file into g in chunks of chunk frames, followed by pad
// samples of silence.
func (r *WAVReader) Stream(g *flow.Graph, chunk, pad int) <-chan []float32 {
	if chunk <= 0 {
		chunk = flow.DefaultBufferSize
	}
	out := make(chan []float32, 16)
	g.Go(func(ctx context.Context) error {
		defer close(out)

		send := func(samples []float32) error {
			select {
			case out <- samples:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for {
			samples, err := r.Read(chunk)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			if err := send(samples); err != nil {
				return err
			}
		}

		for pad > 0 {
			n := min(pad, chunk)
			if err := send(make([]float32, n)); err != nil {
				return err
			}
			pad -= n
		}
		return nil
	})
	return out
}

// WriteWAV writes samples as a mono 16-bit PCM WAV file. Samples outside
// -1.0..1.0 are clipped.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	const (
		bitsPerSample = 16
		channels      = 1
	)
	dataSize := uint32(len(samples) * bitsPerSample / 8)

	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * bitsPerSample / 8),
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	buf := make([]byte, 2)
	for _, s := range samples {
		s = max(-1, min(1, s))
		binary.LittleEndian.PutUint16(buf, uint16(int16(math.Round(float64(s)*math.MaxInt16))))
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("write wav samples: %w", err)
		}
	}

	return bw.Flush()
}
