package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ColonelBlimp/cwblocks/internal/flow"
)

func encodeWAV(t *testing.T, samples []float32, sampleRate int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteWAV(&buf, samples, sampleRate); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}
	return buf.Bytes()
}

func TestWriteWAV_Header(t *testing.T) {
	data := encodeWAV(t, make([]float32, 100), 8000)

	if len(data) != 44+200 {
		t.Fatalf("length = %d, want 244", len(data))
	}

	tests := []struct {
		name   string
		offset int
		want   string
	}{
		{"riff", 0, "RIFF"},
		{"wave", 8, "WAVE"},
		{"fmt", 12, "fmt "},
		{"data", 36, "data"},
	}
	for _, tt := range tests {
		if got := string(data[tt.offset : tt.offset+4]); got != tt.want {
			t.Errorf("%s tag = %q, want %q", tt.name, got, tt.want)
		}
	}

	if got := binary.LittleEndian.Uint32(data[4:]); got != 236 {
		t.Errorf("chunk size = %d, want 236", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:]); got != 8000 {
		t.Errorf("sample rate = %d, want 8000", got)
	}
	if got := binary.LittleEndian.Uint16(data[34:]); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:]); got != 200 {
		t.Errorf("data size = %d, want 200", got)
	}
}

func TestWriteWAV_Clipping(t *testing.T) {
	data := encodeWAV(t, []float32{2, -2, 0.5}, 8000)

	pcm := data[44:]
	tests := []struct {
		index int
		want  int16
	}{
		{0, math.MaxInt16},
		{1, -math.MaxInt16},
		{2, 16384},
	}
	for _, tt := range tests {
		if got := int16(binary.LittleEndian.Uint16(pcm[2*tt.index:])); got != tt.want {
			t.Errorf("sample %d = %d, want %d", tt.index, got, tt.want)
		}
	}
}

func TestWAVReader_RoundTrip(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) / 10))
	}

	r, err := NewWAVReader(bytes.NewReader(encodeWAV(t, samples, 48000)))
	if err != nil {
		t.Fatalf("NewWAVReader() error = %v", err)
	}
	if r.SampleRate() != 48000 {
		t.Errorf("SampleRate() = %d, want 48000", r.SampleRate())
	}

	var got []float32
	for {
		chunk, err := r.Read(300)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, chunk...)
	}

	if len(got) != len(samples) {
		t.Fatalf("read %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if math.Abs(float64(got[i]-samples[i])) > 1e-3 {
			t.Fatalf("sample %d = %v, want %v", i, got[i], samples[i])
		}
	}
}

func TestNewWAVReader_Invalid(t *testing.T) {
	if _, err := NewWAVReader(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Error("NewWAVReader() accepted garbage")
	}
}

func TestWAVReader_Stream(t *testing.T) {
	samples := []float32{0.5, 0.5, 0.5, 0.5, 0.5}

	r, err := NewWAVReader(bytes.NewReader(encodeWAV(t, samples, 8000)))
	if err != nil {
		t.Fatalf("NewWAVReader() error = %v", err)
	}

	g := flow.NewGraph(context.Background())
	sink := flow.Collect(g, r.Stream(g, 2, 7))
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	got := sink.Items()
	if len(got) != 12 {
		t.Fatalf("streamed %d samples, want 12", len(got))
	}
	for i, s := range got {
		want := float32(0)
		if i < 5 {
			want = 0.5
		}
		if math.Abs(float64(s-want)) > 1e-3 {
			t.Errorf("sample %d = %v, want %v", i, s, want)
		}
	}
}

// stereoWAV builds a 16-bit stereo file with left and right held at
// constant levels, followed by a LIST chunk after the data.
func stereoWAV(t *testing.T, frames int, left, right int16, sampleRate int) []byte {
	t.Helper()
	dataSize := uint32(frames * 4)
	list := []byte{'L', 'I', 'S', 'T', 8, 0, 0, 0, 'I', 'N', 'F', 'O', 0x7f, 0x7f, 0x7f, 0x7f}

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
		ChunkSize:     36 + dataSize + uint32(len(list)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   2,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 4),
		BlockAlign:    4,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for range frames {
		if err := binary.Write(&buf, binary.LittleEndian, [2]int16{left, right}); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
	buf.Write(list)
	return buf.Bytes()
}

func TestWAVReader_Stereo(t *testing.T) {
	const frames = 250

	r, err := NewWAVReader(bytes.NewReader(stereoWAV(t, frames, 16384, 8192, 8000)))
	if err != nil {
		t.Fatalf("NewWAVReader() error = %v", err)
	}

	var got []float32
	for {
		chunk, err := r.Read(64)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, chunk...)
	}

	if len(got) != frames {
		t.Fatalf("read %d frames, want %d", len(got), frames)
	}
	for i, s := range got {
		if math.Abs(float64(s)-0.375) > 1e-3 {
			t.Fatalf("frame %d = %v, want 0.375", i, s)
		}
	}
}
