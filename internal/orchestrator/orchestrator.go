// Package orchestrator wires capture, model lifecycle, the transcription
// queue and the visualizer into the record → transcribe cycle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/whisperclip/internal/audio"
	"github.com/chaz8081/whisperclip/internal/config"
	"github.com/chaz8081/whisperclip/internal/model"
	"github.com/chaz8081/whisperclip/internal/queue"
	"github.com/chaz8081/whisperclip/internal/telemetry"
	"github.com/chaz8081/whisperclip/internal/transcribe"
	"github.com/chaz8081/whisperclip/internal/visualizer"
)

// ErrClosed is returned by operations after Shutdown.
var ErrClosed = errors.New("orchestrator: closed")

// successHold is how long State reports Success after a delivery, matching
// the visualizer's success display.
const successHold = 1500 * time.Millisecond

// Bridge is the visualizer command channel. Send must not block.
type Bridge interface {
	Send(c visualizer.Command) bool
	Close() error
}

// Deps are the external collaborators. Sink, Notifier and Bridge may be nil.
type Deps struct {
	Source   audio.Source
	Backend  transcribe.Backend
	Sink     queue.Sink
	Notifier queue.Notifier
	Bridge   Bridge
}

// Orchestrator owns one recorder, one model manager and one worker. Its
// methods are safe to call from hotkey, signal and CLI goroutines.
type Orchestrator struct {
	cfg    *config.Config
	rec    *audio.Recorder
	levels *telemetry.Channel
	mgr    *model.Manager
	q      *queue.Queue
	worker *queue.Worker
	bridge Bridge

	// life bounds speculative loads; cancelled at the end of Shutdown
	life       context.Context
	cancelLife context.CancelFunc
	// releases tracks goroutines unloading discarded speculative loads
	releases sync.WaitGroup

	mu           sync.Mutex
	closed       bool
	pending      *model.LoadTask
	started      chan struct{}
	runDone      chan struct{}
	cancelWorker context.CancelFunc

	transcribing atomic.Bool
	succeededAt  atomic.Int64 // unix nanos of the last delivery, 0 when none
	now          func() time.Time
}

// New builds an orchestrator from cfg. Call Run to start the worker.
func New(deps Deps, cfg *config.Config) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		levels:  telemetry.New(cfg.Visualizer.TelemetryBuffer),
		mgr:     model.NewManager(deps.Backend),
		q:       queue.New(),
		bridge:  deps.Bridge,
		started: make(chan struct{}),
		now:     time.Now,
	}
	if o.bridge == nil {
		o.bridge = nopBridge{}
	}
	o.life, o.cancelLife = context.WithCancel(context.Background())

	o.rec = audio.NewRecorder(deps.Source, audio.StreamConfig{
		SampleRate:   cfg.Audio.SampleRate,
		Channels:     cfg.Audio.Channels,
		BufferFrames: cfg.Audio.BufferFrames,
	}, o.levels)

	opts := queue.Options{
		Observer:     o,
		PollInterval: cfg.Queue.PollInterval,
	}
	if cfg.Clipboard.Enabled {
		opts.Sink = deps.Sink
		if cfg.Clipboard.Notify {
			opts.Notifier = deps.Notifier
		}
	}
	if cfg.LLMContext.Enabled {
		opts.Prefix = cfg.LLMContext.Prefix
	}
	o.worker = queue.NewWorker(o.q, o.mgr, opts)
	return o
}

// Run starts the transcription worker and the level forwarder and blocks
// until Shutdown completes or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.closed || o.runDone != nil {
		o.mu.Unlock()
		return ErrClosed
	}
	wctx, cancel := context.WithCancel(ctx)
	o.cancelWorker = cancel
	o.runDone = make(chan struct{})
	done := o.runDone
	close(o.started)
	o.mu.Unlock()
	defer close(done)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.worker.Run(wctx)
	})
	g.Go(func() error {
		return telemetry.Forward(gctx, o.levels, func(level float32) {
			o.bridge.Send(visualizer.UpdateLevel(level))
		})
	})
	slog.Info("[orchestrator] running", "backend", o.cfg.Model.Backend, "output_dir", o.cfg.OutputDir)
	return g.Wait()
}

// Started is closed once Run has taken ownership of the worker. A Shutdown
// issued after that drains the queue instead of discarding it.
func (o *Orchestrator) Started() <-chan struct{} {
	return o.started
}

// Toggle starts a recording when idle and stops it when recording.
func (o *Orchestrator) Toggle(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rec.IsRecording() {
		return o.stopLocked()
	}
	return o.startLocked(ctx)
}

// StartRecording opens the microphone and loads the model in the
// background. It returns once the stream is open; a device failure is
// returned wrapped in audio.ErrDevice.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startLocked(ctx)
}

func (o *Orchestrator) startLocked(ctx context.Context) error {
	if o.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.rec.IsRecording() {
		return nil
	}

	o.succeededAt.Store(0)
	o.bridge.Send(visualizer.StartLoading)
	task := o.mgr.LoadAsync(o.life)

	if err := o.rec.Start(); err != nil {
		o.bridge.Send(visualizer.StopRecording)
		o.release(task)
		return fmt.Errorf("orchestrator: start recording: %w", err)
	}
	o.pending = task
	o.bridge.Send(visualizer.StartRecording)
	slog.Info("[orchestrator] recording started")
	return nil
}

// StopRecording ends the current recording and queues it for
// transcription. An empty recording queues nothing and releases the
// speculative model load. Stopping while idle is a no-op.
func (o *Orchestrator) StopRecording() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopLocked()
}

func (o *Orchestrator) stopLocked() error {
	if !o.rec.IsRecording() {
		return nil
	}
	task := o.pending
	o.pending = nil

	pcm, err := o.rec.Stop()
	o.bridge.Send(visualizer.StopRecording)
	switch {
	case errors.Is(err, audio.ErrEmptyRecording):
		slog.Info("[orchestrator] recording was empty, nothing to transcribe")
		o.release(task)
		return nil
	case err != nil:
		slog.Error("[orchestrator] recording failed", "error", err, "samples_kept", len(pcm))
		o.release(task)
		return fmt.Errorf("orchestrator: stop recording: %w", err)
	}

	path, err := audio.WriteWAV(o.cfg.OutputDir, pcm, int(o.cfg.Audio.SampleRate), int(o.cfg.Audio.Channels), time.Now())
	if err != nil {
		o.release(task)
		return fmt.Errorf("orchestrator: %w", err)
	}
	job := queue.NewJob(path, task)
	o.q.Enqueue(job)
	slog.Info("[orchestrator] recording queued", "job", job.ID, "path", path, "samples", len(pcm))
	return nil
}

// release waits for a speculative load that no job will use and unloads it.
func (o *Orchestrator) release(task *model.LoadTask) {
	if task == nil {
		return
	}
	o.releases.Add(1)
	go func() {
		defer o.releases.Done()
		if err := task.Wait(context.Background()); err != nil {
			slog.Debug("[orchestrator] discarded load failed", "error", err)
		}
		if err := o.mgr.Unload(); err != nil {
			slog.Warn("[orchestrator] unload discarded model", "error", err)
		}
	}()
}

// TranscribeFile queues an existing audio file.
func (o *Orchestrator) TranscribeFile(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("orchestrator: transcribe file: %w", err)
	}
	o.succeededAt.Store(0)
	job := queue.NewJob(path, nil)
	o.q.Enqueue(job)
	slog.Info("[orchestrator] file queued", "job", job.ID, "path", path)
	return nil
}

// State reports what the orchestrator is doing.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	recording := o.rec.IsRecording()
	task := o.pending
	o.mu.Unlock()

	switch {
	case recording:
		return State{Phase: Recording, ModelLoading: task != nil && task.Pending()}
	case o.transcribing.Load():
		return State{Phase: Transcribing}
	case o.q.Len() > 0:
		return State{Phase: Waiting}
	case o.recentSuccess():
		return State{Phase: Success}
	}
	return State{Phase: Idle}
}

func (o *Orchestrator) recentSuccess() bool {
	at := o.succeededAt.Load()
	return at != 0 && o.now().Sub(time.Unix(0, at)) < successHold
}

// JobStarted implements queue.Observer.
func (o *Orchestrator) JobStarted(queue.Job) {
	o.transcribing.Store(true)
	o.bridge.Send(visualizer.StartTranscription)
}

// JobFinished implements queue.Observer.
func (o *Orchestrator) JobFinished(job queue.Job, _ string, err error) {
	o.transcribing.Store(false)
	if err == nil {
		o.succeededAt.Store(o.now().UnixNano())
	} else {
		o.succeededAt.Store(0)
	}
	o.bridge.Send(visualizer.StopTranscription)
	if err == nil {
		slog.Info("[orchestrator] transcription delivered", "job", job.ID)
	}
}

// Shutdown stops accepting work, finishes any live recording, drains the
// queue for at most queue.drain_timeout (or until ctx is done), then stops
// the visualizer and unloads the model.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	var errs []error
	if err := o.stopLocked(); err != nil {
		errs = append(errs, err)
	}
	o.closed = true
	runDone := o.runDone
	cancelWorker := o.cancelWorker
	o.mu.Unlock()

	slog.Info("[orchestrator] shutting down", "pending_jobs", o.q.Len())
	o.worker.Shutdown()
	o.levels.Close()

	if runDone != nil {
		timer := time.NewTimer(o.cfg.Queue.DrainTimeout)
		defer timer.Stop()
		select {
		case <-runDone:
		case <-timer.C:
			slog.Warn("[orchestrator] drain timed out, abandoning queue", "pending_jobs", o.q.Len())
			cancelWorker()
			<-runDone
		case <-ctx.Done():
			cancelWorker()
			<-runDone
		}
	}

	o.cancelLife()
	o.releases.Wait()

	if err := o.bridge.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := o.mgr.Unload(); err != nil {
		errs = append(errs, err)
	}
	if d := o.levels.Dropped(); d > 0 {
		slog.Debug("[orchestrator] level samples dropped", "count", d)
	}
	slog.Info("[orchestrator] stopped")
	return errors.Join(errs...)
}

type nopBridge struct{}

func (nopBridge) Send(visualizer.Command) bool { return false }
func (nopBridge) Close() error                 { return nil }
