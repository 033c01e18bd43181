// Package hotkey provides a global hotkey listener using gohook.
// It supports "hold" mode (press to start, release to stop) and
// "toggle" mode (press to start, press again to stop).
package hotkey

import (
	"context"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType indicates whether recording should start or stop.
type EventType int

const (
	// EventStart signals that the hotkey was activated (start recording).
	EventStart EventType = iota
	// EventStop signals that the hotkey was deactivated (stop recording).
	EventStop
	// EventToggle is emitted for every press in toggle mode. Whether it
	// starts or stops a recording is decided by the receiver.
	EventToggle
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventToggle:
		return "toggle"
	}
	return "stop"
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener manages a global hotkey and emits start/stop events.
type Listener struct {
	keys []string
	mode string // "hold" or "toggle"
	ch   chan Event
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	held bool // hold mode only
}

// NewListener creates a Listener for the given key combo and mode.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "r"]).
// mode must be "hold" or "toggle".
func NewListener(keys []string, mode string) *Listener {
	return &Listener{
		keys: keys,
		mode: mode,
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when Start returns.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, l.keys, func(hook.Event) { l.press() })
	if l.mode != "toggle" {
		hook.Register(hook.KeyUp, l.keys, func(hook.Event) { l.release() })
	}

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// press handles a key-down of the combo. Toggle mode keeps no state of its
// own; auto-repeat while held is ignored in hold mode.
func (l *Listener) press() {
	if l.mode == "toggle" {
		l.emit(EventToggle)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		l.held = true
		l.emit(EventStart)
	}
}

// release handles a key-up of the combo in hold mode.
func (l *Listener) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		l.held = false
		l.emit(EventStop)
	}
}

func (l *Listener) emit(t EventType) {
	select {
	case l.ch <- Event{Type: t}:
	default: // don't block the hook thread if channel is full
		slog.Warn("[hotkey] event dropped", "event", t)
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}

// Recorder is what hotkey events control.
type Recorder interface {
	Toggle(ctx context.Context) error
	StartRecording(ctx context.Context) error
	StopRecording() error
}

// Dispatch forwards events to r until events is closed or ctx is done.
// Failures are logged; onError, if non-nil, is told about them too.
func Dispatch(ctx context.Context, events <-chan Event, r Recorder, onError func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var err error
			switch ev.Type {
			case EventStart:
				err = r.StartRecording(ctx)
			case EventStop:
				err = r.StopRecording()
			case EventToggle:
				err = r.Toggle(ctx)
			}
			if err != nil {
				slog.Error("[hotkey] action failed", "event", ev.Type, "error", err)
				if onError != nil {
					onError(err)
				}
			}
		}
	}
}
