package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// DefaultExtensions are the clip containers picked up from the input directory
var DefaultExtensions = []string{".mp4"}

// Ingestor combines every clip in a directory into one canonical track
type Ingestor struct {
	decoder    Decoder
	format     Format
	extensions []string
	logger     zerolog.Logger
}

// NewIngestor creates an Ingestor producing tracks in format
func NewIngestor(decoder Decoder, format Format, extensions []string, logger zerolog.Logger) *Ingestor {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &Ingestor{
		decoder:    decoder,
		format:     format,
		extensions: extensions,
		logger:     logger.With().Str("component", "ingest").Logger(),
	}
}

// Combine decodes the matching clips in directory order, concatenates them
// and converts the result to the canonical format. A directory without
// matching clips yields an empty track.
func (in *Ingestor) Combine(ctx context.Context, inputDir string) (*Track, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, &DecodeError{Path: inputDir, Err: fmt.Errorf("failed to read input directory: %w", err)}
	}

	combined := NewTrack(in.format)
	clips := 0
	for _, entry := range entries {
		if entry.IsDir() || !MatchesExtension(entry.Name(), in.extensions) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(inputDir, entry.Name())
		clip, err := in.decoder.Decode(ctx, path)
		if err != nil {
			return nil, err
		}
		if clip.Format != combined.Format {
			if clip, err = clip.Convert(combined.Format); err != nil {
				return nil, &DecodeError{Path: path, Err: err}
			}
		}
		if err := combined.Append(clip); err != nil {
			return nil, err
		}
		clips++

		in.logger.Debug().Str("clip", entry.Name()).Int64("duration_ms", clip.DurationMs()).Msg("decoded clip")
	}

	if clips == 0 {
		in.logger.Warn().Str("dir", inputDir).Strs("extensions", in.extensions).Msg("no input clips found")
	}

	out, err := combined.Convert(in.format)
	if err != nil {
		return nil, err
	}
	in.logger.Info().Int("clips", clips).Int64("duration_ms", out.DurationMs()).Str("format", out.Format.String()).Msg("combined input clips")
	return out, nil
}
