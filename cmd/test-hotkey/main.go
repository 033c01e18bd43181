// Command test-hotkey is a manual test for the global hotkey listener.
// Run it, then press the combo to see the recorder calls it would make.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--mode hold|toggle] [--keys ctrl,shift,r]
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/whisperclip/internal/hotkey"
)

// printRecorder stands in for the orchestrator and reports each call.
type printRecorder struct {
	started   time.Time
	recording bool
}

func (p *printRecorder) Toggle(ctx context.Context) error {
	if p.recording {
		return p.StopRecording()
	}
	return p.StartRecording(ctx)
}

func (p *printRecorder) StartRecording(context.Context) error {
	p.started = time.Now()
	p.recording = true
	fmt.Println(">>> START (recording)")
	return nil
}

func (p *printRecorder) StopRecording() error {
	p.recording = false
	fmt.Printf("<<< STOP  (held %s)\n", time.Since(p.started).Round(time.Millisecond))
	return nil
}

func main() {
	mode := flag.String("mode", "toggle", "hotkey mode: hold or toggle")
	keys := flag.String("keys", "ctrl,shift,r", "comma-separated key combo")
	flag.Parse()

	combo := strings.Split(*keys, ",")
	fmt.Printf("Listening for %s in %q mode...\n", strings.Join(combo, "+"), *mode)
	fmt.Println("Press Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener := hotkey.NewListener(combo, *mode)
	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		hotkey.Dispatch(ctx, listener.Events(), &printRecorder{}, nil)
	}()

	// Blocks until stopped
	listener.Start()
	<-done
	fmt.Println("Done.")
}
