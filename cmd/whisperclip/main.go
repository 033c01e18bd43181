// Command whisperclip records speech on a global hotkey, transcribes it with
// a locally loaded whisper model and delivers the text to the clipboard.
//
// Usage:
//
//	whisperclip [-config path]                 run the dictation utility
//	whisperclip transcribe [-config path] f... transcribe audio files and exit
//	whisperclip download-model [-name base.en] fetch a ggml model for whisper-cpp
//	whisperclip init-config                    write the default config file
//	whisperclip visualizer                     the visualizer peer (started automatically)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/whisperclip/internal/audio"
	"github.com/chaz8081/whisperclip/internal/config"
	"github.com/chaz8081/whisperclip/internal/hotkey"
	"github.com/chaz8081/whisperclip/internal/inject"
	"github.com/chaz8081/whisperclip/internal/logging"
	"github.com/chaz8081/whisperclip/internal/models"
	"github.com/chaz8081/whisperclip/internal/notify"
	"github.com/chaz8081/whisperclip/internal/orchestrator"
	"github.com/chaz8081/whisperclip/internal/transcribe"
	"github.com/chaz8081/whisperclip/internal/visualizer"
)

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var code int
	switch cmd {
	case "":
		code = runDictation(args)
	case "transcribe":
		code = runTranscribe(args)
	case "download-model":
		code = runDownloadModel(args)
	case "init-config":
		code = runInitConfig()
	case "visualizer":
		code = runVisualizer(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		code = 2
	}
	os.Exit(code)
}

func runDictation(args []string) int {
	fs := flag.NewFlagSet("whisperclip", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (default: ~/.config/whisperclip/config.yaml)")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	closer := logging.Setup(cfg)
	defer func() { _ = closer.Close() }()

	printBanner(cfg)

	backend, err := transcribe.New(&cfg.Model)
	if err != nil {
		slog.Error("Failed to create transcription backend", "error", err)
		return 1
	}

	src, err := audio.NewMalgoSource()
	if err != nil {
		slog.Error("Failed to initialize audio", "error", err)
		return 1
	}
	defer func() { _ = src.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := notify.NewDesktop("")
	deps := orchestrator.Deps{
		Source:   src,
		Backend:  backend,
		Sink:     inject.NewInjector(cfg.Clipboard.Method),
		Notifier: notifier,
	}
	if cfg.Visualizer.Enabled {
		if b := startVisualizer(ctx, cfg); b != nil {
			deps.Bridge = b
		}
	}

	o := orchestrator.New(deps, cfg)
	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(context.Background()) }()
	<-o.Started()

	listener := hotkey.NewListener(cfg.Hotkey.Keys, cfg.Hotkey.Mode)
	go listener.Start()
	go hotkey.Dispatch(ctx, listener.Events(), o, func(err error) {
		if errors.Is(err, audio.ErrDevice) {
			_ = notifier.Notify("Recording failed", err.Error())
		}
	})

	slog.Info("Ready", "hotkey", strings.Join(cfg.Hotkey.Keys, "+"), "mode", cfg.Hotkey.Mode)
	<-ctx.Done()
	slog.Info("Shutting down...")

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.DrainTimeout+cfg.Visualizer.QuitTimeout+5*time.Second)
	defer cancel()
	code := 0
	if err := o.Shutdown(sctx); err != nil {
		slog.Error("Shutdown", "error", err)
		code = 1
	}
	if err := <-runErr; err != nil {
		slog.Error("Worker", "error", err)
		code = 1
	}
	// The hotkey listener is not stopped: gohook's C cleanup crashes on
	// exit. The OS reclaims the event hook when the process ends.
	slog.Info("Goodbye!")
	return code
}

// startVisualizer launches the peer. Failure only disables the display.
func startVisualizer(ctx context.Context, cfg *config.Config) *visualizer.Bridge {
	exe, err := os.Executable()
	if err != nil {
		slog.Warn("[visualizer] disabled", "error", err)
		return nil
	}
	argv := []string{exe, "visualizer", "-log-level", cfg.LogLevel}
	if cfg.Visualizer.LogFile != "" {
		argv = append(argv, "-log-file", cfg.Visualizer.LogFile)
	}
	b := visualizer.NewBridge(visualizer.BridgeOptions{
		Argv:         argv,
		QueueSize:    cfg.Visualizer.QueueSize,
		StartupDelay: cfg.Visualizer.StartupDelay,
		QuitTimeout:  cfg.Visualizer.QuitTimeout,
	})
	if err := b.Start(ctx); err != nil {
		slog.Warn("[visualizer] disabled", "error", err)
		return nil
	}
	return b
}

func runTranscribe(args []string) int {
	fs := flag.NewFlagSet("transcribe", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	timeout := fs.Duration("timeout", 30*time.Minute, "give up on remaining files after this long")
	_ = fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: whisperclip transcribe [-config path] file...")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	closer := logging.Setup(cfg)
	defer func() { _ = closer.Close() }()

	backend, err := transcribe.New(&cfg.Model)
	if err != nil {
		slog.Error("Failed to create transcription backend", "error", err)
		return 1
	}

	out := &printSink{w: os.Stdout}
	sinks := multiSink{out}
	if cfg.Clipboard.Enabled {
		sinks = append(sinks, inject.NewInjector(cfg.Clipboard.Method))
	}
	cfg.Clipboard.Enabled = true
	cfg.Clipboard.Notify = false
	cfg.Queue.DrainTimeout = *timeout

	o := orchestrator.New(orchestrator.Deps{Backend: backend, Sink: sinks}, cfg)

	queued := 0
	for _, f := range files {
		if err := o.TranscribeFile(f); err != nil {
			slog.Error("Skipping file", "path", f, "error", err)
			continue
		}
		queued++
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(context.Background()) }()
	<-o.Started()
	if err := o.Shutdown(ctx); err != nil {
		slog.Error("Shutdown", "error", err)
	}
	if err := <-runErr; err != nil {
		slog.Error("Worker", "error", err)
	}

	if out.Count() != len(files) {
		slog.Error("Some files were not transcribed", "transcribed", out.Count(), "queued", queued, "given", len(files))
		return 1
	}
	return 0
}

func runDownloadModel(args []string) int {
	fs := flag.NewFlagSet("download-model", flag.ExitOnError)
	name := fs.String("name", "base.en", "whisper model name, e.g. base.en, small, large-v3-turbo")
	dir := fs.String("dir", config.DefaultModelsDir(), "destination directory")
	baseURL := fs.String("url", models.DefaultBaseURL, "model repository base URL")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("=== Model Download ===")
	path, err := models.NewDownloader(*baseURL, os.Stdout).Download(ctx, *name, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Model ready: %s\n", path)
	fmt.Printf("Set model.backend: whisper-cpp and model.model_path: %s to use it.\n", path)
	return 0
}

func runInitConfig() int {
	path, err := config.WriteDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if path == "" {
		fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
		return 0
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return 0
}

func runVisualizer(args []string) int {
	fs := flag.NewFlagSet("visualizer", flag.ExitOnError)
	logFile := fs.String("log-file", "", "log file (default: discard)")
	logLevel := fs.String("log-level", "info", "log level")
	_ = fs.Parse(args)

	closer := logging.SetupFile(*logFile, *logLevel)
	defer func() { _ = closer.Close() }()

	if err := visualizer.RunPeer(os.Stdin, os.Stdout); err != nil {
		slog.Error("[visualizer] peer failed", "error", err)
		return 1
	}
	return 0
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults. The result is
// validated.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	switch {
	case path != "":
		cfg, err = config.Load(path)
	case fileExists(config.DefaultConfigPath()):
		cfg, err = config.Load(config.DefaultConfigPath())
		if err != nil {
			err = fmt.Errorf("loading %s: %w", config.DefaultConfigPath(), err)
		}
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	model := cfg.Model.Name
	if cfg.Model.Backend == "whisper-cpp" {
		model = cfg.Model.ModelPath
	}
	fmt.Println("=== whisperclip ===")
	fmt.Printf("  Backend:    %s (%s)\n", cfg.Model.Backend, model)
	fmt.Printf("  Hotkey:     %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	fmt.Printf("  Audio:      %dHz, %dch\n", cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Printf("  Output:     %s\n", cfg.OutputDir)
	fmt.Printf("  Clipboard:  %t (%s)\n", cfg.Clipboard.Enabled, cfg.Clipboard.Method)
	fmt.Printf("  Visualizer: %t\n", cfg.Visualizer.Enabled)
	fmt.Printf("  Log:        %s\n", cfg.LogLevel)
	fmt.Println("===================")
}
