package types

import "time"

// Run status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// SpeakerLabel is the opaque speaker identifier assigned by the diarization service.
// Labels are only meaningful within a single run.
type SpeakerLabel string

// Utterance is a speaker-labelled span of the final audio, in milliseconds
// from the start of the published track.
type Utterance struct {
	Speaker SpeakerLabel `json:"speaker"`
	Start   int64        `json:"start"`
	End     int64        `json:"end"`
}

// DurationMs returns the length of the utterance.
func (u Utterance) DurationMs() int64 {
	return u.End - u.Start
}

// Snippet describes one exported per-speaker audio file
type Snippet struct {
	Speaker SpeakerLabel `json:"speaker"`
	Index   int          `json:"index"`
	Path    string       `json:"path"`
	StartMs int64        `json:"start_ms"`
	EndMs   int64        `json:"end_ms"`
}

// RunRecord is the ledger view of a single pipeline run
type RunRecord struct {
	RunID          string    `json:"run_id"`
	InputDir       string    `json:"input_dir"`
	Status         string    `json:"status"`
	FinalAudioPath string    `json:"final_audio_path"`
	PublicURL      string    `json:"public_url"`
	UtteranceCount int       `json:"utterance_count"`
	SpeakerCount   int       `json:"speaker_count"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
