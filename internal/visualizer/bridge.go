package visualizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// BridgeOptions configures the parent side of the visualizer channel.
type BridgeOptions struct {
	// Argv launches the peer. Defaults to this executable with the
	// "visualizer" subcommand.
	Argv []string
	// Output is the peer's stdout, its render surface. Defaults to os.Stdout.
	Output io.Writer
	// QueueSize bounds undelivered commands; extra sends are dropped.
	QueueSize    int
	StartupDelay time.Duration
	QuitTimeout  time.Duration
}

// Bridge forwards commands to the peer process without ever blocking the
// sender. Commands reach the peer in send order; any that do not fit in
// the queue, or that arrive while the peer is gone, are dropped.
type Bridge struct {
	opts BridgeOptions

	ch      chan Command
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool

	cmd       *exec.Cmd
	writerOut chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewBridge creates a bridge. Commands sent before Start are queued.
func NewBridge(opts BridgeOptions) *Bridge {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.QuitTimeout <= 0 {
		opts.QuitTimeout = 2 * time.Second
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Bridge{
		opts: opts,
		ch:   make(chan Command, opts.QueueSize),
	}
}

// Start launches the peer and then waits StartupDelay so it can come up
// before the first visible command.
func (b *Bridge) Start(ctx context.Context) error {
	argv := b.opts.Argv
	if len(argv) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("visualizer: locate executable: %w", err)
		}
		argv = []string{exe, "visualizer"}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = b.opts.Output
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("visualizer: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("visualizer: start peer: %w", err)
	}
	slog.Info("[visualizer] peer started", "pid", cmd.Process.Pid)

	b.cmd = cmd
	b.writerOut = make(chan struct{})
	b.exited = make(chan struct{})
	go b.write(stdin)
	go func() {
		err := cmd.Wait()
		slog.Debug("[visualizer] peer exited", "error", err)
		close(b.exited)
	}()

	if b.opts.StartupDelay > 0 {
		t := time.NewTimer(b.opts.StartupDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	return nil
}

func (b *Bridge) write(stdin io.WriteCloser) {
	defer close(b.writerOut)
	defer func() { _ = stdin.Close() }()

	enc := NewEncoder(stdin)
	broken := false
	for c := range b.ch {
		if broken {
			b.dropped.Add(1)
			continue
		}
		if err := enc.Encode(c); err != nil {
			slog.Warn("[visualizer] peer unavailable, dropping commands", "error", err)
			broken = true
			b.dropped.Add(1)
		}
	}
}

// Send queues c for the peer. It returns false if c was dropped.
func (b *Bridge) Send(c Command) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.dropped.Add(1)
		return false
	}
	select {
	case b.ch <- c:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Dropped counts commands that never reached the peer's pipe.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Close sends quit, gives the peer QuitTimeout to exit, then kills it.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.Send(Quit)

		b.mu.Lock()
		b.closed = true
		close(b.ch)
		b.mu.Unlock()

		if b.cmd == nil {
			return
		}

		t := time.NewTimer(b.opts.QuitTimeout)
		defer t.Stop()
		select {
		case <-b.exited:
		case <-t.C:
			slog.Warn("[visualizer] peer did not quit, killing", "timeout", b.opts.QuitTimeout)
			_ = b.cmd.Process.Kill()
			<-b.exited
			b.closeErr = fmt.Errorf("visualizer: peer killed after %s", b.opts.QuitTimeout)
		}
		<-b.writerOut
	})
	return b.closeErr
}
