package transcribe

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chaz8081/whisperclip/internal/config"
)

func fakeModelConfig(t *testing.T, mode string) *config.ModelConfig {
	t.Helper()
	t.Setenv(fakeHelperEnv, mode)
	cfg := config.Default().Model
	cfg.Python = os.Args[0]
	cfg.ServerBinary = os.Args[0]
	cfg.LoadTimeout = 10 * time.Second
	return &cfg
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{"", "faster-whisper", false},
		{"faster-whisper", "faster-whisper", false},
		{"whisper-cpp", "whisper-cpp", false},
		{"vosk", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Default().Model
			cfg.Backend = tt.backend
			b, err := New(&cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New(%q) should return error", tt.backend)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q) error: %v", tt.backend, err)
			}
			if b.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", b.Name(), tt.want)
			}
		})
	}
}

func TestFasterWhisperTranscribe(t *testing.T) {
	b := NewFasterWhisper(fakeModelConfig(t, "ready"))
	m, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	}()

	for _, name := range []string{"a.wav", "b.wav"} {
		text, err := m.Transcribe(context.Background(), touch(t, name))
		if err != nil {
			t.Fatalf("Transcribe(%s) error: %v", name, err)
		}
		if want := "heard " + name; text != want {
			t.Errorf("Transcribe(%s) = %q, want %q", name, text, want)
		}
	}
}

func TestFasterWhisperMissingFile(t *testing.T) {
	b := NewFasterWhisper(fakeModelConfig(t, "ready"))
	m, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer func() { _ = m.Close() }()

	_, err = m.Transcribe(context.Background(), "/nonexistent/audio.wav")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Transcribe(missing) error = %v, want ErrNotExist", err)
	}
}

func TestFasterWhisperLoadErrors(t *testing.T) {
	tests := []struct {
		mode    string
		timeout time.Duration
		want    string
	}{
		{"fail", 10 * time.Second, "model not found"},
		{"crash", 10 * time.Second, "exited"},
		{"hang", 200 * time.Millisecond, "deadline exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := fakeModelConfig(t, tt.mode)
			cfg.LoadTimeout = tt.timeout
			m, err := NewFasterWhisper(cfg).Load(context.Background())
			if err == nil {
				_ = m.Close()
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestFasterWhisperBadInterpreter(t *testing.T) {
	cfg := config.Default().Model
	cfg.Python = "/nonexistent/python3"
	if _, err := NewFasterWhisper(&cfg).Load(context.Background()); err == nil {
		t.Fatal("Load() with missing interpreter should return error")
	}
}

func TestWhisperCPPTranscribe(t *testing.T) {
	cfg := fakeModelConfig(t, "server")
	cfg.ModelPath = touch(t, "ggml-base.en.bin")
	cfg.ServerPort = freePort(t)

	m, err := NewWhisperCPP(cfg).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer func() { _ = m.Close() }()

	text, err := m.Transcribe(context.Background(), touch(t, "clip.wav"))
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if text != "heard clip.wav" {
		t.Errorf("Transcribe() = %q, want %q", text, "heard clip.wav")
	}

	if _, err := m.Transcribe(context.Background(), "/nonexistent/clip.wav"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Transcribe(missing) error = %v, want ErrNotExist", err)
	}

	if text, err := m.Transcribe(context.Background(), touch(t, "garbled.wav")); err == nil {
		t.Errorf("Transcribe(non-JSON reply) = %q, want error", text)
	}
}

func TestWhisperCPPBadModelPath(t *testing.T) {
	cfg := config.Default().Model
	cfg.ModelPath = "/nonexistent/model.bin"
	if _, err := NewWhisperCPP(&cfg).Load(context.Background()); err == nil {
		t.Fatal("Load() with bad model path should return error")
	}
}

func TestWhisperCPPArgs(t *testing.T) {
	cfg := config.Default().Model
	cfg.Device = "cpu"
	cfg.ServerPort = 9000
	args := strings.Join(NewWhisperCPP(&cfg).args(), " ")
	for _, want := range []string{"--port 9000", "--host 127.0.0.1", "-ng"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}
