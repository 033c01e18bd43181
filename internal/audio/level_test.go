package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want float32
	}{
		{"empty", nil, 0},
		{"silence", make([]float32, 64), 0},
		{"full scale", constant(64, 1), 1},
		{"clipped above full scale", constant(64, 2), 1},
		{"minus 30 dB", constant(64, float32(math.Pow(10, -30.0/20))), 0.5},
		{"below floor", constant(64, 1e-5), 0},
		{"sign does not matter", constant(64, -1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Level(tt.in)
			if math.Abs(float64(got-tt.want)) > 1e-4 {
				t.Errorf("Level() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestToPCM16(t *testing.T) {
	got := ToPCM16([]float32{0, 1, -1, 0.5, 1.5, -1.5})
	want := []int16{0, 32767, -32767, 16383, 32767, -32768}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToPCM16()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWriteWAV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	pcm := ToPCM16(constant(4410, 0.25))
	at := time.Date(2026, 10, 17, 11, 40, 0, 0, time.UTC)

	path, err := WriteWAV(dir, pcm, 44100, 1, at)
	if err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}
	if filepath.Base(path) != "audio_20261017-114000.000.wav" {
		t.Errorf("file name = %q", filepath.Base(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != int64(WAVHeaderSize+2*len(pcm)) {
		t.Errorf("size = %d, want %d", info.Size(), WAVHeaderSize+2*len(pcm))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode WAV: %v", err)
	}
	if dec.SampleRate != 44100 || dec.BitDepth != 16 || dec.NumChans != 1 {
		t.Errorf("format = %dHz %dbit %dch", dec.SampleRate, dec.BitDepth, dec.NumChans)
	}
	if len(buf.Data) != len(pcm) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(pcm))
	}
	if buf.Data[0] != int(pcm[0]) {
		t.Errorf("sample[0] = %d, want %d", buf.Data[0], pcm[0])
	}
}

func TestWriteWAVRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	at := time.Now()
	if _, err := WriteWAV(dir, []int16{1, 2, 3}, 44100, 1, at); err != nil {
		t.Fatalf("first WriteWAV() error = %v", err)
	}
	if _, err := WriteWAV(dir, []int16{1, 2, 3}, 44100, 1, at); err == nil {
		t.Error("second WriteWAV() with same timestamp should fail rather than overwrite")
	}
}

func constant(n int, v float32) []float32 {
	b := make([]float32, n)
	for i := range b {
		b[i] = v
	}
	return b
}
