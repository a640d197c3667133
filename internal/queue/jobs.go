package queue

import (
	"time"

	"github.com/codebuildervaibhav/speaker-splitter/internal/pipeline"
	"github.com/codebuildervaibhav/speaker-splitter/internal/types"
)

// Job represents a queued pipeline run
type Job struct {
	ID        string
	InputDir  string
	Status    string
	Error     error
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewJob creates a new job with default values
func NewJob(id, inputDir string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		InputDir:  inputDir,
		Status:    types.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Request returns the pipeline request for the job
func (j *Job) Request() pipeline.Request {
	return pipeline.Request{RunID: j.ID, InputDir: j.InputDir}
}
