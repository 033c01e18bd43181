package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/chaz8081/whisperclip/internal/config"
)

// readyPoll is the interval between health probes while whisper-server boots.
const readyPoll = 250 * time.Millisecond

// WhisperCPP runs ggml models through a whisper.cpp whisper-server process
// bound to the loopback interface.
type WhisperCPP struct {
	binary      string
	modelPath   string
	device      string
	port        int
	loadTimeout time.Duration
}

// NewWhisperCPP creates a whisper.cpp backend from cfg.
func NewWhisperCPP(cfg *config.ModelConfig) *WhisperCPP {
	return &WhisperCPP{
		binary:      cfg.ServerBinary,
		modelPath:   cfg.ModelPath,
		device:      cfg.Device,
		port:        cfg.ServerPort,
		loadTimeout: cfg.LoadTimeout,
	}
}

func (w *WhisperCPP) Name() string { return "whisper-cpp" }

func (w *WhisperCPP) args() []string {
	args := []string{
		"-m", w.modelPath,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(w.port),
	}
	if w.device == "cpu" {
		args = append(args, "-ng")
	}
	return args
}

// Load starts whisper-server and polls it until it answers.
func (w *WhisperCPP) Load(ctx context.Context) (Model, error) {
	if _, err := os.Stat(w.modelPath); err != nil {
		return nil, fmt.Errorf("transcribe: whisper-cpp model: %w", err)
	}

	cmd := exec.Command(w.binary, w.args()...)
	h, err := startHelper("whisper-server", cmd, nil)
	if err != nil {
		return nil, err
	}
	m := &whisperCPPModel{
		h: h,
		client: resty.New().
			SetBaseURL(fmt.Sprintf("http://127.0.0.1:%d", w.port)).
			SetTimeout(10 * time.Minute),
	}

	if w.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.loadTimeout)
		defer cancel()
	}
	if err := m.waitReady(ctx); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("transcribe: whisper-cpp load %s: %w", w.modelPath, err)
	}
	slog.Info("[transcribe] model loaded", "backend", w.Name(), "model", w.modelPath, "port", w.port)
	return m, nil
}

type whisperCPPModel struct {
	h      *helper
	client *resty.Client

	closeOnce sync.Once
	closeErr  error
}

func (m *whisperCPPModel) waitReady(ctx context.Context) error {
	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()
	for {
		resp, err := m.client.R().SetContext(ctx).Get("/")
		if err == nil && resp.StatusCode() == http.StatusOK {
			return nil
		}
		select {
		case <-m.h.Exited():
			return m.h.ExitErr()
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type inferenceResult struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func (m *whisperCPPModel) Transcribe(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	var res inferenceResult
	resp, err := m.client.R().
		SetContext(ctx).
		SetFile("file", path).
		SetFormData(map[string]string{
			"response_format": "json",
			"temperature":     "0.0",
		}).
		SetResult(&res).
		ForceContentType("application/json").
		Post("/inference")
	if err != nil {
		return "", fmt.Errorf("transcribe: inference request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("transcribe: inference: HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if res.Error != "" {
		return "", fmt.Errorf("transcribe: inference: %s", res.Error)
	}
	return strings.TrimSpace(res.Text), nil
}

// Close interrupts whisper-server and kills it if it does not exit.
func (m *whisperCPPModel) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.h.stop(func() error {
			return m.h.cmd.Process.Signal(syscall.SIGINT)
		})
	})
	return m.closeErr
}
