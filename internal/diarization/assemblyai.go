package diarization

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/types"
)

// DefaultBaseURL is the AssemblyAI REST endpoint
const DefaultBaseURL = "https://api.assemblyai.com"

// Transcript job states reported by the service
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

var errStillProcessing = errors.New("transcript still processing")

// Diarizer returns speaker-labelled utterances for a publicly reachable audio file
type Diarizer interface {
	Diarize(ctx context.Context, audioURL string) ([]types.Utterance, error)
}

// TranscriptionError is returned when the job does not reach the completed state
type TranscriptionError struct {
	JobID   string
	Status  string
	Message string
	Err     error
}

func (e *TranscriptionError) Error() string {
	msg := fmt.Sprintf("transcription failed with status: %s", e.Status)
	if e.JobID != "" {
		msg += fmt.Sprintf(" (job %s)", e.JobID)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// Config configures the AssemblyAI client
type Config struct {
	BaseURL         string
	APIKey          string
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	MaxWait         time.Duration // zero waits until ctx is done
	HTTPClient      *http.Client
}

// AssemblyAI submits transcripts with speaker labels and waits for them
type AssemblyAI struct {
	baseURL         string
	apiKey          string
	pollInterval    time.Duration
	maxPollInterval time.Duration
	maxWait         time.Duration
	client          *http.Client
	logger          zerolog.Logger
}

// NewAssemblyAI creates a new AssemblyAI diarizer
func NewAssemblyAI(cfg Config, logger zerolog.Logger) *AssemblyAI {
	a := &AssemblyAI{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		pollInterval:    cfg.PollInterval,
		maxPollInterval: cfg.MaxPollInterval,
		maxWait:         cfg.MaxWait,
		client:          cfg.HTTPClient,
		logger:          logger.With().Str("component", "diarization").Logger(),
	}
	if a.baseURL == "" {
		a.baseURL = DefaultBaseURL
	}
	if a.pollInterval <= 0 {
		a.pollInterval = 3 * time.Second
	}
	if a.maxPollInterval < a.pollInterval {
		a.maxPollInterval = 10 * a.pollInterval
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 60 * time.Second}
	}
	return a
}

type transcriptRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
}

type transcriptResponse struct {
	ID         string              `json:"id"`
	Status     string              `json:"status"`
	Error      string              `json:"error"`
	Utterances []utteranceResponse `json:"utterances"`
}

type utteranceResponse struct {
	Speaker    string  `json:"speaker"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Diarize submits audioURL and blocks until the job reaches a terminal state.
// Failed jobs are not resubmitted.
func (a *AssemblyAI) Diarize(ctx context.Context, audioURL string) ([]types.Utterance, error) {
	job, err := a.submit(ctx, audioURL)
	if err != nil {
		return nil, &TranscriptionError{Status: "submit_failed", Err: err}
	}
	a.logger.Info().Str("job_id", job.ID).Str("status", job.Status).Msg("transcript submitted")

	tr, err := a.await(ctx, job.ID)
	if err != nil {
		return nil, &TranscriptionError{JobID: job.ID, Status: "poll_failed", Err: err}
	}
	if tr.Status != StatusCompleted {
		return nil, &TranscriptionError{JobID: job.ID, Status: tr.Status, Message: tr.Error}
	}

	utterances := make([]types.Utterance, 0, len(tr.Utterances))
	for _, u := range tr.Utterances {
		utterances = append(utterances, types.Utterance{
			Speaker: types.SpeakerLabel(u.Speaker),
			Start:   u.Start,
			End:     u.End,
		})
	}
	a.logger.Info().Str("job_id", job.ID).Int("utterances", len(utterances)).Msg("transcript completed")
	return utterances, nil
}

func (a *AssemblyAI) submit(ctx context.Context, audioURL string) (*transcriptResponse, error) {
	body, err := json.Marshal(transcriptRequest{AudioURL: audioURL, SpeakerLabels: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

// await polls the job with exponential backoff until it is completed or errored
func (a *AssemblyAI) await(ctx context.Context, jobID string) (*transcriptResponse, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.pollInterval
	policy.MaxInterval = a.maxPollInterval
	policy.MaxElapsedTime = a.maxWait

	var result *transcriptResponse
	poll := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/transcript/"+jobID, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		tr, err := a.do(req)
		if err != nil {
			var statusErr *httpStatusError
			if errors.As(err, &statusErr) && statusErr.Code < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		switch tr.Status {
		case StatusCompleted, StatusError:
			result = tr
			return nil
		}
		return errStillProcessing
	}

	notify := func(err error, wait time.Duration) {
		a.logger.Debug().Str("job_id", jobID).Err(err).Dur("retry_in", wait).Msg("transcript not ready")
	}

	if err := backoff.RetryNotify(poll, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}
	return result, nil
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("assemblyai http %d: %s", e.Code, e.Body)
}

func (a *AssemblyAI) do(req *http.Request) (*transcriptResponse, error) {
	req.Header.Set("Authorization", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("assemblyai decode: %w", err)
	}
	return &tr, nil
}
