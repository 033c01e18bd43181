// Package logging installs the process-wide slog handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/chaz8081/whisperclip/internal/config"
)

// Setup installs a text slog handler as the default logger. Output goes to
// a rotating file when cfg.Log.File is set, otherwise to stderr. The
// returned closer flushes and closes the file; it is a no-op for stderr.
func Setup(cfg *config.Config) io.Closer {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.Log.File != "" {
		lj := rotating(cfg.Log.File, cfg.Log)
		out, closer = lj, lj
	}

	install(out, config.ParseLogLevel(cfg.LogLevel))
	return closer
}

// SetupFile routes logs to path only, or discards them when path is empty.
// Used by the visualizer peer, whose stdio is reserved.
func SetupFile(path string, level string) io.Closer {
	if path == "" {
		install(io.Discard, config.ParseLogLevel(level))
		return nopCloser{}
	}
	lj := rotating(path, config.Default().Log)
	install(lj, config.ParseLogLevel(level))
	return lj
}

func rotating(path string, lc config.LogConfig) *lumberjack.Logger {
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
	}
}

func install(w io.Writer, level slog.Level) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
