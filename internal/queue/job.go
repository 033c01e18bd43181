package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/whisperclip/internal/model"
)

// Job is one finished recording or selected file awaiting transcription.
type Job struct {
	ID   string
	Path string
	// Load is the speculative load started with the recording, or nil.
	Load     *model.LoadTask
	Enqueued time.Time
}

// NewJob creates a job for path with a fresh ID.
func NewJob(path string, load *model.LoadTask) Job {
	return Job{
		ID:       uuid.NewString(),
		Path:     path,
		Load:     load,
		Enqueued: time.Now(),
	}
}
