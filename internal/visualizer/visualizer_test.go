package visualizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/goleak"
)

// The test binary doubles as a fake peer when fakePeerEnv is set.
const (
	fakePeerEnv    = "WHISPERCLIP_FAKE_PEER"
	fakePeerOutEnv = "WHISPERCLIP_FAKE_PEER_OUT"
)

func TestMain(m *testing.M) {
	switch os.Getenv(fakePeerEnv) {
	case "":
		goleak.VerifyTestMain(m)
	case "record":
		recordPeer(os.Getenv(fakePeerOutEnv))
		os.Exit(0)
	case "hang":
		time.Sleep(time.Minute)
		os.Exit(0)
	}
}

// recordPeer writes one line per decoded command until quit or EOF.
func recordPeer(out string) {
	f, err := os.Create(out)
	if err != nil {
		os.Exit(2)
	}
	defer func() { _ = f.Close() }()
	dec := NewDecoder(os.Stdin)
	for {
		c, err := dec.Decode()
		if err != nil {
			return
		}
		_, _ = fmt.Fprintf(f, "%s %.2f\n", c.Kind, c.Level)
		if c.Kind == KindQuit {
			return
		}
	}
}

func TestCodecPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	sent := []Command{StartLoading, StartRecording, UpdateLevel(0.25), UpdateLevel(0.75), StopRecording, StartTranscription, StopTranscription, Quit}
	for _, c := range sent {
		if err := enc.Encode(c); err != nil {
			t.Fatal(err)
		}
	}

	dec := NewDecoder(&buf)
	for i, want := range sent {
		got, err := dec.Decode()
		if err != nil {
			t.Fatalf("Decode() #%d error = %v", i, err)
		}
		if got.Kind != want.Kind || got.Level != want.Level || got.Version != ProtocolVersion {
			t.Errorf("Decode() #%d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := dec.Decode(); !errors.Is(err, io.EOF) {
		t.Errorf("Decode() at end = %v, want io.EOF", err)
	}
}

func TestDecodeRejectsUnknownAndForeignVersions(t *testing.T) {
	var buf bytes.Buffer
	raw := msgpack.NewEncoder(&buf)
	_ = raw.Encode(&Command{Version: ProtocolVersion, Kind: "explode"})
	_ = raw.Encode(&Command{Version: 9, Kind: KindQuit})
	_ = NewEncoder(&buf).Encode(StopRecording)

	dec := NewDecoder(&buf)
	if _, err := dec.Decode(); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown kind error = %v", err)
	}
	if _, err := dec.Decode(); !errors.Is(err, ErrVersion) {
		t.Errorf("foreign version error = %v", err)
	}
	if c, err := dec.Decode(); err != nil || c.Kind != KindStopRecording {
		t.Errorf("stream unusable after rejects: %+v, %v", c, err)
	}
}

func TestSendNeverBlocksWithoutPeer(t *testing.T) {
	b := NewBridge(BridgeOptions{QueueSize: 4})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			b.Send(UpdateLevel(0.5))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send() blocked with no peer")
	}
	if got := b.Dropped(); got != 10000-4 {
		t.Errorf("Dropped() = %d, want %d", got, 10000-4)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close() without Start = %v", err)
	}
	if b.Send(StartLoading) {
		t.Error("Send() after Close() should drop")
	}
}

func TestBridgeDeliversInOrder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "peer.log")
	t.Setenv(fakePeerEnv, "record")
	t.Setenv(fakePeerOutEnv, out)

	b := NewBridge(BridgeOptions{Argv: []string{os.Args[0]}, Output: io.Discard, QuitTimeout: 5 * time.Second})
	if err := b.Start(testContext(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for _, c := range []Command{StartLoading, StartRecording, UpdateLevel(0.5), StopRecording} {
		if !b.Send(c) {
			t.Fatalf("Send(%s) dropped", c.Kind)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "start_loading 0.00\nstart_recording 0.00\nupdate_level 0.50\nstop_recording 0.00\nquit 0.00\n"
	if string(got) != want {
		t.Errorf("peer received:\n%s\nwant:\n%s", got, want)
	}
}

func TestBridgeKillsHungPeer(t *testing.T) {
	t.Setenv(fakePeerEnv, "hang")

	b := NewBridge(BridgeOptions{Argv: []string{os.Args[0]}, Output: io.Discard, QuitTimeout: 100 * time.Millisecond})
	if err := b.Start(testContext(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	start := time.Now()
	err := b.Close()
	if err == nil || !strings.Contains(err.Error(), "killed") {
		t.Errorf("Close() = %v, want kill error", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Close() took %s", elapsed)
	}
}

func TestBridgeStartFailure(t *testing.T) {
	b := NewBridge(BridgeOptions{Argv: []string{"/nonexistent/visualizer"}})
	if err := b.Start(testContext(t)); err == nil {
		t.Fatal("Start() with missing binary should fail")
	}
	_ = b.Close()
}

// testContext mirrors testing.T.Context (Go 1.24+): the context is
// canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
