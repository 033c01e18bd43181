package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chaz8081/whisperclip/internal/model"
)

// ErrTranscription marks a job whose transcribe call failed.
var ErrTranscription = errors.New("queue: transcription failed")

const maxLoadAttempts = 3

// Sink receives finished text, e.g. the clipboard.
type Sink interface {
	Deliver(text string) error
}

// Notifier tells the user a transcript is ready.
type Notifier interface {
	Notify(title, message string) error
}

// Observer is told when the worker picks up and finishes a job. err is
// nil on success.
type Observer interface {
	JobStarted(job Job)
	JobFinished(job Job, text string, err error)
}

// Options configures a Worker. Nil collaborators are skipped.
type Options struct {
	Sink     Sink
	Notifier Notifier
	Observer Observer
	// Prefix is prepended verbatim to every transcript when non-empty.
	Prefix       string
	PollInterval time.Duration
}

// Worker is the single consumer of a Queue. Each job loads the model if
// needed, transcribes, and unloads before the next job starts.
type Worker struct {
	q    *Queue
	mgr  *model.Manager
	opts Options

	draining atomic.Bool
}

// NewWorker creates a worker for q.
func NewWorker(q *Queue, mgr *model.Manager, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Worker{q: q, mgr: mgr, opts: opts}
}

// Run processes jobs until Shutdown has been called and the queue is
// empty, or until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	slog.Debug("[queue] worker started")
	defer slog.Debug("[queue] worker stopped")

	for {
		if ctx.Err() != nil {
			if n := w.q.Len(); n > 0 {
				slog.Warn("[queue] worker cancelled with jobs pending", "pending", n)
			}
			return nil
		}
		if w.draining.Load() && w.q.Len() == 0 {
			return nil
		}

		job, ok := w.q.Dequeue(ctx, w.opts.PollInterval)
		if !ok {
			continue
		}
		if err := w.process(ctx, job); err != nil {
			slog.Error("[queue] job failed", "job", job.ID, "path", job.Path, "error", err)
		}
	}
}

// Shutdown makes Run return once the queue is drained.
func (w *Worker) Shutdown() {
	w.draining.Store(true)
	w.q.wake()
}

func (w *Worker) process(ctx context.Context, job Job) (err error) {
	var text string
	if w.opts.Observer != nil {
		w.opts.Observer.JobStarted(job)
		defer func() { w.opts.Observer.JobFinished(job, text, err) }()
	}
	defer func() {
		if uerr := w.mgr.Unload(); uerr != nil {
			slog.Warn("[queue] unload after job", "job", job.ID, "error", uerr)
		}
	}()

	start := time.Now()
	slog.Info("[queue] transcribing", "job", job.ID, "path", job.Path, "waited", start.Sub(job.Enqueued).Round(time.Millisecond))

	if job.Load != nil && job.Load.Pending() {
		if lerr := job.Load.Wait(ctx); lerr != nil {
			// the load below retries; a cancelled ctx fails it too
			slog.Warn("[queue] speculative load failed", "job", job.ID, "error", lerr)
		}
	}
	// The speculative load may already have been unloaded by the previous
	// job, and a discarded recording may unload between Load and Transcribe.
	for attempt := 1; ; attempt++ {
		if err = w.mgr.Load(ctx); err != nil {
			return err
		}
		if err = w.mgr.AwaitReady(ctx); err != nil {
			return fmt.Errorf("queue: waiting for model: %w", err)
		}
		text, err = w.mgr.Transcribe(ctx, job.Path)
		if !errors.Is(err, model.ErrNotLoaded) || attempt == maxLoadAttempts {
			break
		}
		slog.Debug("[queue] model unloaded before use, reloading", "job", job.ID, "attempt", attempt)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTranscription, job.Path, err)
	}
	if w.opts.Prefix != "" {
		text = w.opts.Prefix + text
	}
	slog.Info("[queue] transcribed", "job", job.ID, "elapsed", time.Since(start).Round(time.Millisecond), "chars", len(text))

	if w.opts.Sink != nil {
		if serr := w.opts.Sink.Deliver(text); serr != nil {
			slog.Warn("[queue] deliver transcript", "job", job.ID, "error", serr)
			return nil
		}
	}
	if w.opts.Notifier != nil {
		if nerr := w.opts.Notifier.Notify("Transcription ready", preview(text)); nerr != nil {
			slog.Debug("[queue] notify", "error", nerr)
		}
	}
	return nil
}

// preview shortens text for a notification body.
func preview(text string) string {
	const limit = 80
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit-1]) + "…"
}
