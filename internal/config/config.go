package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Audio      AudioConfig      `yaml:"audio"`
	OutputDir  string           `yaml:"output_dir"`
	Hotkey     HotkeyConfig     `yaml:"hotkey"`
	Clipboard  ClipboardConfig  `yaml:"clipboard"`
	LLMContext LLMContextConfig `yaml:"llm_context"`
	Queue      QueueConfig      `yaml:"queue"`
	Visualizer VisualizerConfig `yaml:"visualizer"`
	LogLevel   string           `yaml:"log_level"`
	Log        LogConfig        `yaml:"log"`
}

// ModelConfig selects and tunes the out-of-process transcription backend.
type ModelConfig struct {
	Backend      string        `yaml:"backend"` // "faster-whisper" or "whisper-cpp"
	Name         string        `yaml:"name"`
	Device       string        `yaml:"device"` // "auto", "cpu" or "cuda"
	ComputeType  string        `yaml:"compute_type"`
	ModelPath    string        `yaml:"model_path"` // ggml file, whisper-cpp only
	Python       string        `yaml:"python"`
	ServerBinary string        `yaml:"server_binary"`
	ServerPort   int           `yaml:"server_port"`
	LoadTimeout  time.Duration `yaml:"load_timeout"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate   uint32 `yaml:"sample_rate"`
	Channels     uint32 `yaml:"channels"`
	BufferFrames uint32 `yaml:"buffer_frames"`
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Keys []string `yaml:"keys"`
	Mode string   `yaml:"mode"` // "toggle" or "hold"
}

// ClipboardConfig controls where finished text goes.
type ClipboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Method  string `yaml:"method"` // "copy", "paste" or "type"
	Notify  bool   `yaml:"notify"`
}

// LLMContextConfig prepends a fixed instruction to every transcript.
type LLMContextConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

// QueueConfig tunes the transcription worker.
type QueueConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// VisualizerConfig controls the visualization peer process.
type VisualizerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	QueueSize       int           `yaml:"queue_size"`
	TelemetryBuffer int           `yaml:"telemetry_buffer"`
	StartupDelay    time.Duration `yaml:"startup_delay"`
	QuitTimeout     time.Duration `yaml:"quit_timeout"`
	LogFile         string        `yaml:"log_file"`
}

// LogConfig enables rotating file output.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "whisperclip")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns where downloaded ggml models are stored.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".local", "share", "whisperclip", "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Backend:      "faster-whisper",
			Name:         "turbo",
			Device:       "auto",
			ComputeType:  "int8",
			ModelPath:    filepath.Join(DefaultModelsDir(), "ggml-base.en.bin"),
			Python:       "python3",
			ServerBinary: "whisper-server",
			ServerPort:   8178,
			LoadTimeout:  2 * time.Minute,
		},
		Audio: AudioConfig{
			SampleRate:   44100,
			Channels:     1,
			BufferFrames: 1024,
		},
		OutputDir: "output",
		Hotkey: HotkeyConfig{
			Keys: []string{"ctrl", "shift", "r"},
			Mode: "toggle",
		},
		Clipboard: ClipboardConfig{
			Enabled: true,
			Method:  "copy",
			Notify:  true,
		},
		Queue: QueueConfig{
			PollInterval: time.Second,
			DrainTimeout: 30 * time.Second,
		},
		Visualizer: VisualizerConfig{
			Enabled:         true,
			QueueSize:       256,
			TelemetryBuffer: 64,
			StartupDelay:    time.Second,
			QuitTimeout:     2 * time.Second,
		},
		LogLevel: "info",
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. A leading ~ in path settings is expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Model.ModelPath = expandTilde(cfg.Model.ModelPath)
	cfg.OutputDir = expandTilde(cfg.OutputDir)
	cfg.Log.File = expandTilde(cfg.Log.File)
	cfg.Visualizer.LogFile = expandTilde(cfg.Visualizer.LogFile)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case "faster-whisper":
		if c.Model.Name == "" {
			return fmt.Errorf("model.name must not be empty for faster-whisper backend")
		}
		if c.Model.Python == "" {
			return fmt.Errorf("model.python must not be empty for faster-whisper backend")
		}
	case "whisper-cpp":
		if c.Model.ModelPath == "" {
			return fmt.Errorf("model.model_path must not be empty for whisper-cpp backend")
		}
		if c.Model.ServerBinary == "" {
			return fmt.Errorf("model.server_binary must not be empty for whisper-cpp backend")
		}
		if c.Model.ServerPort <= 0 || c.Model.ServerPort > 65535 {
			return fmt.Errorf("model.server_port must be in 1..65535, got %d", c.Model.ServerPort)
		}
	default:
		return fmt.Errorf("model.backend must be \"faster-whisper\" or \"whisper-cpp\", got %q", c.Model.Backend)
	}

	switch c.Model.Device {
	case "auto", "cpu", "cuda":
	default:
		return fmt.Errorf("model.device must be auto, cpu, or cuda, got %q", c.Model.Device)
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}

	if len(c.Hotkey.Keys) == 0 {
		return fmt.Errorf("hotkey.keys must not be empty")
	}

	switch c.Hotkey.Mode {
	case "hold", "toggle":
	default:
		return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
	}

	switch c.Clipboard.Method {
	case "copy", "paste", "type":
	default:
		return fmt.Errorf("clipboard.method must be copy, paste, or type, got %q", c.Clipboard.Method)
	}

	if c.LLMContext.Enabled && strings.TrimSpace(c.LLMContext.Prefix) == "" {
		return fmt.Errorf("llm_context.prefix must not be empty when llm_context is enabled")
	}

	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue.poll_interval must be > 0")
	}
	if c.Queue.DrainTimeout <= 0 {
		return fmt.Errorf("queue.drain_timeout must be > 0")
	}

	if c.Visualizer.Enabled {
		if c.Visualizer.QueueSize <= 0 {
			return fmt.Errorf("visualizer.queue_size must be > 0")
		}
		if c.Visualizer.QuitTimeout <= 0 {
			return fmt.Errorf("visualizer.quit_timeout must be > 0")
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config log level to a slog.Level. Unknown values
// fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = "# whisperclip configuration\n# Generated with defaults; edit and restart to apply.\n\n"

// WriteDefault writes the default config to DefaultConfigPath. It returns
// ("", nil) when a config file already exists there.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
