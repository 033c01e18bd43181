// Package model owns the lifecycle of the single transcription model
// instance: load, readiness and unload.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/whisperclip/internal/transcribe"
)

var (
	// ErrLoad wraps every failure of the backend's load call.
	ErrLoad = errors.New("model: load failed")
	// ErrNotLoaded is returned by Transcribe when no model is installed.
	ErrNotLoaded = errors.New("model: not loaded")
)

// Manager guarantees at most one loaded model. Load and Unload share one
// critical section, so concurrent loads collapse into a single backend load.
type Manager struct {
	backend transcribe.Backend

	// lock is a one-slot semaphore so waiting for it can be cancelled.
	lock chan struct{}
	// use is held for reading by in-flight transcriptions and for writing
	// while a handle is torn down.
	use    sync.RWMutex
	handle atomic.Pointer[handle]
	ready  *Event
	loads  atomic.Int64
}

type handle struct {
	m transcribe.Model
}

// NewManager creates an unloaded manager for b.
func NewManager(b transcribe.Backend) *Manager {
	return &Manager{
		backend: b,
		lock:    make(chan struct{}, 1),
		ready:   NewEvent(),
	}
}

func (m *Manager) acquire(ctx context.Context) error {
	select {
	case m.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) release() { <-m.lock }

// Load installs a model unless one is already loaded. Callers arriving
// while another load runs wait for it and then return without loading.
func (m *Manager) Load(ctx context.Context) error {
	if err := m.acquire(ctx); err != nil {
		return fmt.Errorf("model: waiting for load: %w", err)
	}
	defer m.release()

	if m.handle.Load() != nil {
		return nil
	}

	m.ready.Clear()
	start := time.Now()
	slog.Info("[model] loading", "backend", m.backend.Name())
	h, err := m.backend.Load(ctx)
	if err != nil {
		slog.Error("[model] load failed", "backend", m.backend.Name(), "error", err)
		return fmt.Errorf("%w: %s: %w", ErrLoad, m.backend.Name(), err)
	}
	m.handle.Store(&handle{m: h})
	m.loads.Add(1)
	m.ready.Set()
	slog.Info("[model] ready", "backend", m.backend.Name(), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// LoadAsync runs Load in its own goroutine.
func (m *Manager) LoadAsync(ctx context.Context) *LoadTask {
	t := newLoadTask()
	go func() {
		t.finish(m.Load(ctx))
	}()
	return t
}

// Unload closes the loaded model, if any. It waits for an in-progress load
// and for in-flight transcriptions to return before closing.
func (m *Manager) Unload() error {
	_ = m.acquire(context.Background())
	defer m.release()

	m.use.Lock()
	h := m.handle.Swap(nil)
	m.ready.Clear()
	m.use.Unlock()
	if h == nil {
		return nil
	}

	if err := h.m.Close(); err != nil {
		slog.Warn("[model] unload", "backend", m.backend.Name(), "error", err)
		return fmt.Errorf("model: unload: %w", err)
	}
	slog.Info("[model] unloaded", "backend", m.backend.Name())
	return nil
}

// AwaitReady blocks until a model is loaded or ctx is done.
func (m *Manager) AwaitReady(ctx context.Context) error {
	return m.ready.Wait(ctx)
}

// Transcribe runs path through the loaded model. Unload cannot close the
// model while this call is in flight.
func (m *Manager) Transcribe(ctx context.Context, path string) (string, error) {
	m.use.RLock()
	defer m.use.RUnlock()

	h := m.handle.Load()
	if h == nil {
		return "", ErrNotLoaded
	}
	return h.m.Transcribe(ctx, path)
}

// Handle returns the loaded model or nil.
func (m *Manager) Handle() transcribe.Model {
	if h := m.handle.Load(); h != nil {
		return h.m
	}
	return nil
}

// Loaded reports whether a model is installed.
func (m *Manager) Loaded() bool { return m.handle.Load() != nil }

// Loads counts physical backend loads since creation.
func (m *Manager) Loads() int { return int(m.loads.Load()) }
