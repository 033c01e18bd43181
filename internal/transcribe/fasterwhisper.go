package transcribe

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/whisperclip/internal/config"
)

//go:embed assets/faster_whisper_server.py
var fwScript []byte

// FasterWhisper runs models through a persistent faster-whisper helper
// process that speaks JSON lines on stdin/stdout.
type FasterWhisper struct {
	python      string
	model       string
	device      string
	computeType string
	loadTimeout time.Duration
}

// NewFasterWhisper creates a faster-whisper backend from cfg.
func NewFasterWhisper(cfg *config.ModelConfig) *FasterWhisper {
	return &FasterWhisper{
		python:      cfg.Python,
		model:       cfg.Name,
		device:      cfg.Device,
		computeType: cfg.ComputeType,
		loadTimeout: cfg.LoadTimeout,
	}
}

func (f *FasterWhisper) Name() string { return "faster-whisper" }

type fwRequest struct {
	ID    int    `json:"id"`
	Audio string `json:"audio"`
}

type fwReply struct {
	ID     int    `json:"id"`
	Ready  bool   `json:"ready"`
	Device string `json:"device"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Load starts the helper and blocks until it reports the model ready.
func (f *FasterWhisper) Load(ctx context.Context) (Model, error) {
	script, err := writeScript()
	if err != nil {
		return nil, err
	}

	device := f.device
	if device == "" {
		device = "auto"
	}
	cmd := exec.Command(f.python, script,
		"--model", f.model,
		"--device", device,
		"--compute-type", f.computeType)
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("transcribe: faster-whisper stdin pipe: %w", err)
	}

	m := &fasterWhisperModel{
		stdin:   stdin,
		enc:     json.NewEncoder(stdin),
		replies: make(chan fwReply, 16),
		closing: make(chan struct{}),
	}
	m.h, err = startHelper("faster-whisper", cmd, m.readReplies)
	if err != nil {
		return nil, err
	}

	if f.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.loadTimeout)
		defer cancel()
	}

	select {
	case r, ok := <-m.replies:
		switch {
		case !ok:
			<-m.h.Exited()
			err = fmt.Errorf("transcribe: faster-whisper load %q: %w", f.model, m.h.ExitErr())
		case r.Error != "":
			err = fmt.Errorf("transcribe: faster-whisper load %q: %s", f.model, r.Error)
		case !r.Ready:
			err = fmt.Errorf("transcribe: faster-whisper load %q: unexpected reply before ready", f.model)
		default:
			m.device = r.Device
			slog.Info("[transcribe] model loaded", "backend", f.Name(), "model", f.model, "device", r.Device)
			return m, nil
		}
	case <-ctx.Done():
		err = fmt.Errorf("transcribe: faster-whisper load %q: %w", f.model, ctx.Err())
	}

	_ = m.Close()
	return nil, err
}

type fasterWhisperModel struct {
	h       *helper
	stdin   io.WriteCloser
	enc     *json.Encoder
	replies chan fwReply
	closing chan struct{}
	device  string

	nextID    int
	closeOnce sync.Once
}

func (m *fasterWhisperModel) Transcribe(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("transcribe: resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	m.nextID++
	id := m.nextID
	if err := m.enc.Encode(fwRequest{ID: id, Audio: abs}); err != nil {
		return "", fmt.Errorf("transcribe: send request: %w", err)
	}

	for {
		select {
		case r, ok := <-m.replies:
			if !ok {
				<-m.h.Exited()
				return "", m.h.ExitErr()
			}
			if r.ID != id {
				// reply to a request abandoned by a cancelled call
				continue
			}
			if r.Error != "" {
				return "", fmt.Errorf("transcribe: %s: %s", filepath.Base(abs), r.Error)
			}
			return strings.TrimSpace(r.Text), nil
		case <-ctx.Done():
			return "", fmt.Errorf("transcribe: %w", ctx.Err())
		}
	}
}

// Close closes stdin, which makes the helper exit after any in-flight
// request, and kills it if it lingers.
func (m *fasterWhisperModel) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.closing)
		err = m.h.stop(m.stdin.Close)
	})
	return err
}

func (m *fasterWhisperModel) readReplies(r io.Reader) {
	defer close(m.replies)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var reply fwReply
		if err := json.Unmarshal(sc.Bytes(), &reply); err != nil {
			slog.Warn("[transcribe] unparseable helper output", "line", sc.Text())
			continue
		}
		select {
		case m.replies <- reply:
		case <-m.closing:
			_, _ = io.Copy(io.Discard, r)
			return
		}
	}
}

var scriptMu sync.Mutex

// writeScript materializes the embedded helper in the temp dir.
func writeScript() (string, error) {
	scriptMu.Lock()
	defer scriptMu.Unlock()

	path := filepath.Join(os.TempDir(), "whisperclip_faster_whisper.py")
	if err := os.WriteFile(path, fwScript, 0o755); err != nil {
		return "", fmt.Errorf("transcribe: write helper script: %w", err)
	}
	return path, nil
}
