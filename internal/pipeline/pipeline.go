// Package pipeline sequences a run: combine the input clips, isolate vocals,
// strip silence, publish the final track, diarize it and split it per speaker.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/audio"
	"github.com/codebuildervaibhav/speaker-splitter/internal/diarization"
	"github.com/codebuildervaibhav/speaker-splitter/internal/segment"
	"github.com/codebuildervaibhav/speaker-splitter/internal/separation"
	"github.com/codebuildervaibhav/speaker-splitter/internal/storage"
	"github.com/codebuildervaibhav/speaker-splitter/internal/types"
)

// CombinedFile is the intermediate WAV handed to the separator
const CombinedFile = "combined.wav"

// Combiner builds one track out of every clip in a directory
type Combiner interface {
	Combine(ctx context.Context, inputDir string) (*audio.Track, error)
}

// Config holds the paths and parameters of a run
type Config struct {
	TempDir            string
	FinalAudioPath     string
	OutputRoot         string
	Format             audio.Format
	SilenceThresholdDB float64
	MinSilenceMs       int64
}

// Deps are the collaborators a Pipeline drives
type Deps struct {
	Combiner Combiner
	// Intermediate writes the combined track and reads the vocal stem back
	Intermediate interface {
		audio.Encoder
		audio.Decoder
	}
	// Final writes the published track and reloads it for segmentation
	Final interface {
		audio.Encoder
		audio.Decoder
	}
	Separator separation.Separator
	Publisher storage.Publisher
	Diarizer  diarization.Diarizer
	Segmenter *segment.Segmenter
	Ledger    *storage.Ledger // optional
}

// Request identifies one run
type Request struct {
	RunID    string
	InputDir string
}

// Output is the result of the audio half of a run
type Output struct {
	FinalPath string
	PublicURL string
	Track     *audio.Track
}

// Report is the result of a complete run
type Report struct {
	Output
	Utterances   []types.Utterance
	Segments     *segment.Result
	WorkspaceDir string
	ManifestPath string
}

// Pipeline runs the stages in order; it is not safe for concurrent runs
// because every run writes the same final audio path.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// New creates a Pipeline
func New(cfg Config, deps Deps, logger zerolog.Logger) *Pipeline {
	if cfg.Format == (audio.Format{}) {
		cfg.Format = audio.CanonicalFormat
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

func (p *Pipeline) begin(ctx context.Context, runID string, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return fail(stage, err)
	}
	p.logger.Info().Str("run_id", runID).Str("stage", string(stage)).Msg("=== stage started ===")
	return nil
}

// Run produces the final track and publishes it
func (p *Pipeline) Run(ctx context.Context, req Request) (*Output, error) {
	if err := p.begin(ctx, req.RunID, StageIngest); err != nil {
		return nil, err
	}
	combined, err := p.deps.Combiner.Combine(ctx, req.InputDir)
	if err != nil {
		return nil, fail(StageIngest, err)
	}
	p.logger.Info().Str("run_id", req.RunID).Int64("duration_ms", combined.DurationMs()).Msg("combined input clips")

	if err := p.begin(ctx, req.RunID, StageSeparate); err != nil {
		return nil, err
	}
	vocals, err := p.separate(ctx, combined)
	if err != nil {
		return nil, fail(StageSeparate, err)
	}

	if err := p.begin(ctx, req.RunID, StageTrim); err != nil {
		return nil, err
	}
	trimmed := audio.Trim(vocals, p.cfg.SilenceThresholdDB, p.cfg.MinSilenceMs)
	p.logger.Info().
		Str("run_id", req.RunID).
		Int64("before_ms", vocals.DurationMs()).
		Int64("after_ms", trimmed.DurationMs()).
		Msg("removed silence")

	if err := p.begin(ctx, req.RunID, StageExport); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p.cfg.FinalAudioPath), 0755); err != nil {
		return nil, fail(StageExport, fmt.Errorf("failed to create output directory: %v", err))
	}
	if err := p.deps.Final.Encode(ctx, trimmed, p.cfg.FinalAudioPath); err != nil {
		return nil, fail(StageExport, err)
	}

	if err := p.begin(ctx, req.RunID, StagePublish); err != nil {
		return nil, err
	}
	url, err := p.deps.Publisher.Publish(ctx, p.cfg.FinalAudioPath)
	if err != nil {
		return nil, fail(StagePublish, err)
	}

	return &Output{FinalPath: p.cfg.FinalAudioPath, PublicURL: url, Track: trimmed}, nil
}

// separate writes the combined track to the temp dir, runs the separator on
// it and returns the vocal stem in the canonical format. An empty track is
// its own vocal track.
func (p *Pipeline) separate(ctx context.Context, combined *audio.Track) (*audio.Track, error) {
	if combined.IsEmpty() {
		p.logger.Warn().Msg("combined track is empty, skipping separation")
		return combined.Convert(p.cfg.Format)
	}

	if err := os.MkdirAll(p.cfg.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %v", err)
	}
	combinedPath := filepath.Join(p.cfg.TempDir, CombinedFile)
	if err := p.deps.Intermediate.Encode(ctx, combined, combinedPath); err != nil {
		return nil, fmt.Errorf("failed to export combined audio: %w", err)
	}

	vocalPath, err := p.deps.Separator.Separate(ctx, combinedPath, p.cfg.TempDir)
	if err != nil {
		return nil, err
	}

	vocals, err := p.deps.Intermediate.Decode(ctx, vocalPath)
	if err != nil {
		return nil, err
	}
	return vocals.Convert(p.cfg.Format)
}

// Process runs the whole chain and records the outcome in the ledger
func (p *Pipeline) Process(ctx context.Context, req Request) (*Report, error) {
	p.setStatus(req.RunID, types.StatusProcessing, "")

	report, err := p.process(ctx, req)
	if err != nil {
		p.logger.Error().Err(err).Str("run_id", req.RunID).Msg("run failed")
		p.setStatus(req.RunID, types.StatusFailed, err.Error())
		return report, err
	}

	if p.deps.Ledger != nil {
		if err := p.deps.Ledger.CompleteRun(req.RunID, len(report.Utterances), report.Segments.Snippets); err != nil {
			p.logger.Error().Err(err).Str("run_id", req.RunID).Msg("failed to record run")
		}
	}
	p.logger.Info().
		Str("run_id", req.RunID).
		Int("utterances", len(report.Utterances)).
		Int("speakers", report.Segments.Speakers).
		Str("workspace", report.WorkspaceDir).
		Msg("run completed")
	return report, nil
}

func (p *Pipeline) process(ctx context.Context, req Request) (*Report, error) {
	out, err := p.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	report := &Report{Output: *out}

	if p.deps.Ledger != nil {
		if err := p.deps.Ledger.SetFinalAudio(req.RunID, out.FinalPath, out.PublicURL); err != nil {
			p.logger.Warn().Err(err).Str("run_id", req.RunID).Msg("failed to record final audio")
		}
	}

	if err := p.begin(ctx, req.RunID, StageDiarize); err != nil {
		return report, err
	}
	if out.Track.DurationMs() == 0 {
		p.logger.Warn().Str("run_id", req.RunID).Msg("final track is empty, skipping diarization")
	} else {
		report.Utterances, err = p.deps.Diarizer.Diarize(ctx, out.PublicURL)
		if err != nil {
			return report, fail(StageDiarize, err)
		}
	}

	if err := p.begin(ctx, req.RunID, StageSegment); err != nil {
		return report, err
	}
	ws, err := storage.NewWorkspace(p.cfg.OutputRoot, req.RunID)
	if err != nil {
		return report, fail(StageSegment, err)
	}
	report.WorkspaceDir = ws.Dir()

	// offsets refer to the published file, so slice what was actually encoded
	final := out.Track
	if len(report.Utterances) > 0 {
		if final, err = p.deps.Final.Decode(ctx, out.FinalPath); err != nil {
			return report, fail(StageSegment, err)
		}
	}

	report.Segments, err = p.deps.Segmenter.Segment(ctx, report.Utterances, final, ws.SpeakerDir)
	if err != nil {
		return report, fail(StageSegment, err)
	}

	report.ManifestPath, err = ws.SaveManifest(&storage.Manifest{
		InputDir:       req.InputDir,
		FinalAudioPath: out.FinalPath,
		PublicURL:      out.PublicURL,
		Utterances:     len(report.Utterances),
		Speakers:       report.Segments.Speakers,
		Snippets:       report.Segments.Snippets,
	})
	if err != nil {
		return report, fail(StageSegment, err)
	}

	return report, nil
}

func (p *Pipeline) setStatus(runID, status, errMsg string) {
	if p.deps.Ledger == nil {
		return
	}
	if err := p.deps.Ledger.UpdateRunStatus(runID, status, errMsg); err != nil {
		p.logger.Warn().Err(err).Str("run_id", runID).Str("status", status).Msg("failed to update run status")
	}
}
