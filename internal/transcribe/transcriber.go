// Package transcribe provides speech-to-text backends. Every backend runs
// its model in a separate helper process so that unloading a model returns
// all of its device memory to the system.
//
// Supported backends:
//   - faster-whisper: a persistent Python helper (default)
//   - whisper-cpp: the whisper.cpp HTTP server
package transcribe

import (
	"context"
	"fmt"

	"github.com/chaz8081/whisperclip/internal/config"
)

// Backend knows how to bring up a model.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Load blocks until a model instance is ready to transcribe. It picks an
	// accelerated device when one is available and falls back otherwise.
	Load(ctx context.Context) (Model, error)
}

// Model is one loaded model instance. Transcribe must not be called
// concurrently, and must not overlap Close.
type Model interface {
	// Transcribe converts the audio file at path to text with surrounding
	// whitespace removed.
	Transcribe(ctx context.Context, path string) (string, error)
	// Close unloads the model and releases its device memory.
	Close() error
}

// New creates a Backend based on the config backend setting.
func New(cfg *config.ModelConfig) (Backend, error) {
	switch cfg.Backend {
	case "faster-whisper", "":
		return NewFasterWhisper(cfg), nil
	case "whisper-cpp":
		return NewWhisperCPP(cfg), nil
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: faster-whisper, whisper-cpp)", cfg.Backend)
	}
}
