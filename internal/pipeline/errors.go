package pipeline

import "fmt"

// Stage names a step of a run
type Stage string

// Run stages, in execution order
const (
	StageIngest   Stage = "ingest"
	StageSeparate Stage = "separate"
	StageTrim     Stage = "trim"
	StageExport   Stage = "export"
	StagePublish  Stage = "publish"
	StageDiarize  Stage = "diarize"
	StageSegment  Stage = "segment"
)

// StageError wraps the failure of a single stage
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
