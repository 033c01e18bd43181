package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Model.Backend != "faster-whisper" {
		t.Errorf("Model.Backend = %q, want %q", cfg.Model.Backend, "faster-whisper")
	}
	if cfg.Model.Name != "turbo" {
		t.Errorf("Model.Name = %q, want %q", cfg.Model.Name, "turbo")
	}
	if cfg.Model.ComputeType != "int8" {
		t.Errorf("Model.ComputeType = %q, want %q", cfg.Model.ComputeType, "int8")
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("Audio.SampleRate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("Audio.Channels = %d, want 1", cfg.Audio.Channels)
	}
	if cfg.OutputDir != "output" {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, "output")
	}
	if cfg.Hotkey.Mode != "toggle" {
		t.Errorf("Hotkey.Mode = %q, want %q", cfg.Hotkey.Mode, "toggle")
	}
	if cfg.Clipboard.Method != "copy" {
		t.Errorf("Clipboard.Method = %q, want %q", cfg.Clipboard.Method, "copy")
	}
	if cfg.Visualizer.QuitTimeout != 2*time.Second {
		t.Errorf("Visualizer.QuitTimeout = %v, want 2s", cfg.Visualizer.QuitTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
model:
  backend: whisper-cpp
  model_path: /tmp/ggml-tiny.bin
  server_port: 9000
audio:
  sample_rate: 16000
  channels: 2
output_dir: /tmp/recordings
hotkey:
  keys: ["alt", "d"]
  mode: hold
clipboard:
  enabled: false
  method: paste
llm_context:
  enabled: true
  prefix: "Fix the grammar:"
queue:
  poll_interval: 250ms
visualizer:
  enabled: false
  quit_timeout: 5s
log_level: debug
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.Backend != "whisper-cpp" {
		t.Errorf("Model.Backend = %q, want %q", cfg.Model.Backend, "whisper-cpp")
	}
	if cfg.Model.ModelPath != "/tmp/ggml-tiny.bin" {
		t.Errorf("Model.ModelPath = %q, want %q", cfg.Model.ModelPath, "/tmp/ggml-tiny.bin")
	}
	if cfg.Model.ServerPort != 9000 {
		t.Errorf("Model.ServerPort = %d, want 9000", cfg.Model.ServerPort)
	}
	// untouched fields keep their defaults
	if cfg.Model.ServerBinary != "whisper-server" {
		t.Errorf("Model.ServerBinary = %q, want default", cfg.Model.ServerBinary)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 2 {
		t.Errorf("Audio = %+v, want 16000Hz 2ch", cfg.Audio)
	}
	if cfg.OutputDir != "/tmp/recordings" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if len(cfg.Hotkey.Keys) != 2 || cfg.Hotkey.Keys[0] != "alt" || cfg.Hotkey.Keys[1] != "d" {
		t.Errorf("Hotkey.Keys = %v, want [alt d]", cfg.Hotkey.Keys)
	}
	if cfg.Clipboard.Enabled {
		t.Error("Clipboard.Enabled = true, want false")
	}
	if !cfg.LLMContext.Enabled || cfg.LLMContext.Prefix != "Fix the grammar:" {
		t.Errorf("LLMContext = %+v", cfg.LLMContext)
	}
	if cfg.Queue.PollInterval != 250*time.Millisecond {
		t.Errorf("Queue.PollInterval = %v, want 250ms", cfg.Queue.PollInterval)
	}
	if cfg.Visualizer.Enabled {
		t.Error("Visualizer.Enabled = true, want false")
	}
	if cfg.Visualizer.QuitTimeout != 5*time.Second {
		t.Errorf("Visualizer.QuitTimeout = %v, want 5s", cfg.Visualizer.QuitTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	yamlContent := `
model:
  model_path: ~/models/test.bin
output_dir: ~/whisperclip/output
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := filepath.Join(home, "models/test.bin"); cfg.Model.ModelPath != want {
		t.Errorf("Model.ModelPath = %q, want %q", cfg.Model.ModelPath, want)
	}
	if want := filepath.Join(home, "whisperclip/output"); cfg.OutputDir != want {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, want)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("audio: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Model.Backend = "invalid" }, true},
		{"faster-whisper without name", func(c *Config) { c.Model.Name = "" }, true},
		{"faster-whisper without python", func(c *Config) { c.Model.Python = "" }, true},
		{"whisper-cpp without model path", func(c *Config) {
			c.Model.Backend = "whisper-cpp"
			c.Model.ModelPath = ""
		}, true},
		{"whisper-cpp bad port", func(c *Config) {
			c.Model.Backend = "whisper-cpp"
			c.Model.ServerPort = 70000
		}, true},
		{"whisper-cpp valid", func(c *Config) { c.Model.Backend = "whisper-cpp" }, false},
		{"invalid device", func(c *Config) { c.Model.Device = "tpu" }, true},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, true},
		{"zero channels", func(c *Config) { c.Audio.Channels = 0 }, true},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, true},
		{"empty hotkey keys", func(c *Config) { c.Hotkey.Keys = nil }, true},
		{"invalid hotkey mode", func(c *Config) { c.Hotkey.Mode = "invalid" }, true},
		{"invalid clipboard method", func(c *Config) { c.Clipboard.Method = "invalid" }, true},
		{"llm context without prefix", func(c *Config) { c.LLMContext.Enabled = true }, true},
		{"zero poll interval", func(c *Config) { c.Queue.PollInterval = 0 }, true},
		{"zero drain timeout", func(c *Config) { c.Queue.DrainTimeout = 0 }, true},
		{"negative drain timeout", func(c *Config) { c.Queue.DrainTimeout = -time.Second }, true},
		{"zero visualizer queue", func(c *Config) { c.Visualizer.QueueSize = 0 }, true},
		{"zero visualizer queue while disabled", func(c *Config) {
			c.Visualizer.Enabled = false
			c.Visualizer.QueueSize = 0
		}, false},
		{"invalid log level", func(c *Config) { c.LogLevel = "invalid" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "whisperclip", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# whisperclip") {
		t.Error("written config should start with header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("written config Audio.SampleRate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Queue.PollInterval != time.Second {
		t.Errorf("written config Queue.PollInterval = %v, want 1s", cfg.Queue.PollInterval)
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "whisperclip")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existing := []byte("output_dir: /custom\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existing, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existing) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLogLevel(tt.input); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
