package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/pipeline"
	"github.com/codebuildervaibhav/speaker-splitter/internal/storage"
	"github.com/codebuildervaibhav/speaker-splitter/internal/types"
)

// ErrQueueFull is returned when the backlog is at capacity
var ErrQueueFull = errors.New("run queue is full")

// ErrQueueClosed is returned after Stop
var ErrQueueClosed = errors.New("run queue is closed")

// Processor executes one run
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
}

// Queue feeds runs to a single worker. Runs share the final audio path, so
// they are never processed concurrently.
type Queue struct {
	jobs      chan *Job
	processor Processor
	ledger    *storage.Ledger
	logger    zerolog.Logger

	mu     sync.Mutex
	active map[string]*Job // queued or processing; finished runs live in the ledger
	closed bool
	wg     sync.WaitGroup
}

// NewQueue creates a queue holding at most capacity pending runs
func NewQueue(processor Processor, ledger *storage.Ledger, capacity int, logger zerolog.Logger) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		jobs:      make(chan *Job, capacity),
		processor: processor,
		ledger:    ledger,
		active:    make(map[string]*Job),
		logger:    logger.With().Str("component", "queue").Logger(),
	}
}

// Start launches the worker; ctx is handed to every run
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.worker(ctx)
	q.logger.Info().Int("capacity", cap(q.jobs)).Msg("run queue started")
}

// Stop refuses new runs and waits for the queued ones to finish
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info().Msg("run queue stopped")
}

// Enqueue registers a new run for inputDir and queues it
func (q *Queue) Enqueue(inputDir string) (*Job, error) {
	job := NewJob(uuid.NewString(), inputDir)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	if q.ledger != nil {
		if _, err := q.ledger.CreateRun(job.ID, job.InputDir); err != nil {
			return nil, err
		}
	}

	select {
	case q.jobs <- job:
	default:
		if q.ledger != nil {
			q.ledger.UpdateRunStatus(job.ID, types.StatusFailed, ErrQueueFull.Error())
		}
		return nil, ErrQueueFull
	}

	q.active[job.ID] = job
	q.logger.Info().Str("run_id", job.ID).Str("input_dir", inputDir).Msg("run enqueued")
	return job.snapshot(), nil
}

// Pending returns the number of runs queued or in progress
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

func (j *Job) snapshot() *Job {
	c := *j
	return &c
}

// setStatus records a transition; terminal states drop the job from the
// in-memory index
func (q *Queue) setStatus(job *Job, status string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Status = status
	job.Error = err
	job.UpdatedAt = time.Now()
	if status == types.StatusCompleted || status == types.StatusFailed {
		delete(q.active, job.ID)
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.run(ctx, job)
	}
}

func (q *Queue) run(ctx context.Context, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().
				Str("run_id", job.ID).
				Str("stack", string(debug.Stack())).
				Msgf("panic processing run: %v", r)
			err := fmt.Errorf("worker panic: %v", r)
			q.setStatus(job, types.StatusFailed, err)
			if q.ledger != nil {
				q.ledger.UpdateRunStatus(job.ID, types.StatusFailed, err.Error())
			}
		}
	}()

	q.setStatus(job, types.StatusProcessing, nil)
	q.logger.Info().Str("run_id", job.ID).Msg("processing run")

	// the report carries the whole final track; only the outcome is kept
	if _, err := q.processor.Process(ctx, job.Request()); err != nil {
		q.setStatus(job, types.StatusFailed, err)
		return
	}
	q.setStatus(job, types.StatusCompleted, nil)
}
