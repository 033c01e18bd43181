// Package models fetches ggml model files for the whisper-cpp backend.
// faster-whisper models are pulled by the helper itself on first load.
package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL hosts the upstream ggml conversions.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]*$`)

// FileName returns the ggml file name for a whisper model such as "base.en".
func FileName(name string) string {
	return "ggml-" + name + ".bin"
}

// Downloader fetches ggml models over HTTP.
type Downloader struct {
	client *resty.Client
	out    io.Writer
}

// NewDownloader creates a downloader against baseURL that reports progress
// to out. A nil out discards progress.
func NewDownloader(baseURL string, out io.Writer) *Downloader {
	if out == nil {
		out = io.Discard
	}
	return &Downloader{
		client: resty.New().SetBaseURL(baseURL).SetDoNotParseResponse(true),
		out:    out,
	}
}

// Download fetches the named model into dir and returns its path. An
// existing non-empty file is left alone.
func (d *Downloader) Download(ctx context.Context, name, dir string) (string, error) {
	if !validName.MatchString(name) {
		return "", fmt.Errorf("models: invalid model name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("models: creating models dir: %w", err)
	}

	file := FileName(name)
	destPath := filepath.Join(dir, file)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		_, _ = fmt.Fprintf(d.out, "  Model already exists: %s (%.0f MB)\n", destPath, float64(info.Size())/(1024*1024))
		return destPath, nil
	}

	_, _ = fmt.Fprintf(d.out, "  Downloading %s\n  Destination: %s\n", file, destPath)

	resp, err := d.client.R().SetContext(ctx).Get("/" + file)
	if err != nil {
		return "", fmt.Errorf("models: downloading %s: %w", file, err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("models: download %s failed: HTTP %d", file, resp.StatusCode())
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("models: creating temp file: %w", err)
	}

	pw := &progressWriter{
		writer: f,
		out:    d.out,
		total:  resp.RawResponse.ContentLength,
		label:  file,
	}
	written, err := io.Copy(pw, body)
	_ = f.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("models: writing model file: %w", err)
	}
	_, _ = fmt.Fprintf(d.out, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("models: moving model file: %w", err)
	}
	return destPath, nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		_, _ = fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		_, _ = fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
