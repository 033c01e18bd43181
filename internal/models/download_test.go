package models

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func newModelServer(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/ggml-base.en.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDownload(t *testing.T) {
	srv, hits := newModelServer(t, "ggml-weights")
	dir := filepath.Join(t.TempDir(), "models")

	var out bytes.Buffer
	d := NewDownloader(srv.URL, &out)
	path, err := d.Download(context.Background(), "base.en", dir)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if path != filepath.Join(dir, "ggml-base.en.bin") {
		t.Errorf("path = %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading model: %v", err)
	}
	if string(got) != "ggml-weights" {
		t.Errorf("content = %q, want %q", got, "ggml-weights")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	// second call is a no-op
	if _, err := d.Download(context.Background(), "base.en", dir); err != nil {
		t.Fatalf("second Download() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("progress output %q should report existing model", out.String())
	}
}

func TestDownloadNotFound(t *testing.T) {
	srv, _ := newModelServer(t, "")
	dir := t.TempDir()

	_, err := NewDownloader(srv.URL, nil).Download(context.Background(), "large-v3", dir)
	if err == nil {
		t.Fatal("Download() of missing model should fail")
	}
	if _, err := os.Stat(filepath.Join(dir, "ggml-large-v3.bin")); !os.IsNotExist(err) {
		t.Error("failed download left a model file")
	}
}

func TestDownloadInvalidName(t *testing.T) {
	for _, name := range []string{"", "../etc/passwd", "Base"} {
		if _, err := NewDownloader("http://127.0.0.1:0", nil).Download(context.Background(), name, t.TempDir()); err == nil {
			t.Errorf("Download(%q) should fail", name)
		}
	}
}

func TestProgressWriter(t *testing.T) {
	tmpDir := t.TempDir()
	f, err := os.Create(filepath.Join(tmpDir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	var out bytes.Buffer
	pw := &progressWriter{
		writer: f,
		out:    &out,
		total:  100,
		label:  "test",
	}

	data := make([]byte, 50)
	n, err := pw.Write(data)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 50 {
		t.Errorf("Write() n = %d, want 50", n)
	}
	if pw.written != 50 {
		t.Errorf("written = %d, want 50", pw.written)
	}
	if !strings.Contains(out.String(), "50%") {
		t.Errorf("progress = %q, want it to show 50%%", out.String())
	}
}
