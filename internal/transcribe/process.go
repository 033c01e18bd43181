package transcribe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// stopGrace is how long a helper gets to exit on its own before it is killed.
const stopGrace = 3 * time.Second

// helper is a model process owned by a loaded Model.
type helper struct {
	name string
	cmd  *exec.Cmd

	exited chan struct{}
	err    error // valid once exited is closed

	stopOnce sync.Once
}

// startHelper launches cmd, forwarding its stderr to the log line by line.
// When stdout is non-nil it consumes the process's standard output; Wait is
// only called once both readers have hit EOF.
func startHelper(name string, cmd *exec.Cmd, stdout func(io.Reader)) (*helper, error) {
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("transcribe: %s stderr pipe: %w", name, err)
	}
	var out io.Reader
	if stdout != nil {
		if out, err = cmd.StdoutPipe(); err != nil {
			return nil, fmt.Errorf("transcribe: %s stdout pipe: %w", name, err)
		}
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transcribe: start %s: %w", name, err)
	}

	h := &helper{name: name, cmd: cmd, exited: make(chan struct{})}
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		logLines(name, stderr)
	}()
	if stdout != nil {
		readers.Add(1)
		go func() {
			defer readers.Done()
			stdout(out)
		}()
	}
	go func() {
		readers.Wait()
		h.err = cmd.Wait()
		close(h.exited)
	}()
	return h, nil
}

// Exited is closed when the process has terminated.
func (h *helper) Exited() <-chan struct{} { return h.exited }

// ExitErr describes why the process ended. Only valid after Exited.
func (h *helper) ExitErr() error {
	if h.err == nil {
		return fmt.Errorf("transcribe: %s exited", h.name)
	}
	return fmt.Errorf("transcribe: %s exited: %w", h.name, h.err)
}

// stop asks the process to exit via ask, then kills it after stopGrace.
func (h *helper) stop(ask func() error) error {
	var killed bool
	h.stopOnce.Do(func() {
		if ask != nil {
			if err := ask(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				slog.Debug("[transcribe] polite stop failed", "helper", h.name, "error", err)
			}
		}
		select {
		case <-h.exited:
		case <-time.After(stopGrace):
			slog.Warn("[transcribe] helper did not exit, killing", "helper", h.name)
			_ = h.cmd.Process.Kill()
			<-h.exited
			killed = true
		}
	})
	if killed {
		return fmt.Errorf("transcribe: %s killed after %s", h.name, stopGrace)
	}
	return nil
}

func logLines(name string, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		slog.Debug("[transcribe] helper", "helper", name, "line", sc.Text())
	}
}
