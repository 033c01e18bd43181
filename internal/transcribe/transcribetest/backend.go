// Package transcribetest provides an instrumented transcribe.Backend for
// tests.
package transcribetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chaz8081/whisperclip/internal/transcribe"
)

var _ transcribe.Backend = (*Backend)(nil)

// Call records one Transcribe invocation on a fake model.
type Call struct {
	Path  string
	Start time.Time
	End   time.Time
}

// Backend is an in-memory transcribe.Backend. Models it loads return
// "text <basename>" unless TranscribeFunc says otherwise.
type Backend struct {
	LoadDelay      time.Duration
	LoadErr        error
	TranscribeTime time.Duration
	TranscribeFunc func(path string) (string, error)

	mu      sync.Mutex
	loads   int
	closes  int
	live    int
	maxLive int
	calls   []Call
	events  []string
}

func (f *Backend) Name() string { return "fake" }

func (f *Backend) Load(ctx context.Context) (transcribe.Model, error) {
	if f.LoadDelay > 0 {
		select {
		case <-time.After(f.LoadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	f.events = append(f.events, "load")
	return &fakeModel{b: f}, nil
}

// Loads counts successful loads.
func (f *Backend) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// Closes counts closed models.
func (f *Backend) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// Live counts models loaded and not yet closed.
func (f *Backend) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

// MaxLive is the largest number of simultaneously live models observed.
func (f *Backend) MaxLive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxLive
}

// Calls returns the transcriptions performed, in start order.
func (f *Backend) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Events returns the sequence of "load", "transcribe <base>" and "close"
// events across all models.
func (f *Backend) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type fakeModel struct {
	b      *Backend
	closed bool
}

func (m *fakeModel) Transcribe(ctx context.Context, path string) (string, error) {
	b := m.b
	b.mu.Lock()
	if m.closed {
		b.mu.Unlock()
		return "", errors.New("transcribe: fake model used after close")
	}
	idx := len(b.calls)
	b.calls = append(b.calls, Call{Path: path, Start: time.Now()})
	b.events = append(b.events, "transcribe "+filepath.Base(path))
	b.mu.Unlock()

	if b.TranscribeTime > 0 {
		select {
		case <-time.After(b.TranscribeTime):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	b.mu.Lock()
	b.calls[idx].End = time.Now()
	b.mu.Unlock()

	if b.TranscribeFunc != nil {
		return b.TranscribeFunc(path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return "text " + filepath.Base(path), nil
}

func (m *fakeModel) Close() error {
	b := m.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	b.closes++
	b.live--
	b.events = append(b.events, "close")
	return nil
}
