// Package segment splits the final audio into per-speaker snippets using
// diarization offsets.
package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/audio"
	"github.com/codebuildervaibhav/speaker-splitter/internal/types"
)

// SnippetExt is the extension of every written snippet
const SnippetExt = ".wav"

// SliceOutOfRangeError reports an utterance that does not fit the final track
type SliceOutOfRangeError struct {
	Index      int
	Utterance  types.Utterance
	DurationMs int64
}

func (e *SliceOutOfRangeError) Error() string {
	return fmt.Sprintf("utterance %d (speaker %s, %d-%dms) is outside the final audio (%dms)",
		e.Index, e.Utterance.Speaker, e.Utterance.Start, e.Utterance.End, e.DurationMs)
}

// SpeakerCollisionError reports two distinct labels that would share a
// speaker directory
type SpeakerCollisionError struct {
	First  types.SpeakerLabel
	Second types.SpeakerLabel
	Dir    string
}

func (e *SpeakerCollisionError) Error() string {
	return fmt.Sprintf("speakers %q and %q both map to directory %s", e.First, e.Second, e.Dir)
}

// Bucket groups utterances by speaker, in the order speakers first appear
type Bucket struct {
	Speakers   []types.SpeakerLabel
	Utterances map[types.SpeakerLabel][]types.Utterance
}

// Count returns the number of utterances for a speaker
func (b *Bucket) Count(speaker types.SpeakerLabel) int {
	return len(b.Utterances[speaker])
}

// Plan checks every utterance against the track duration and groups them by
// speaker. Nothing is written, so a bad offset or two labels sharing a
// directory reject the whole run up front.
func Plan(utterances []types.Utterance, durationMs int64) (*Bucket, error) {
	b := &Bucket{Utterances: make(map[types.SpeakerLabel][]types.Utterance)}
	dirs := make(map[string]types.SpeakerLabel)
	for i, u := range utterances {
		if u.Start < 0 || u.End < u.Start || u.End > durationMs {
			return nil, &SliceOutOfRangeError{Index: i, Utterance: u, DurationMs: durationMs}
		}
		if _, seen := b.Utterances[u.Speaker]; !seen {
			dir := SpeakerDirName(u.Speaker)
			if other, taken := dirs[dir]; taken {
				return nil, &SpeakerCollisionError{First: other, Second: u.Speaker, Dir: dir}
			}
			dirs[dir] = u.Speaker
			b.Speakers = append(b.Speakers, u.Speaker)
		}
		b.Utterances[u.Speaker] = append(b.Utterances[u.Speaker], u)
	}
	return b, nil
}

// SpeakerDirName returns the directory name for a speaker's snippets. Path
// separators in the label are replaced so a label can't escape the output root.
func SpeakerDirName(speaker types.SpeakerLabel) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, string(speaker))
	return "speaker_" + safe
}

// DirFunc resolves the directory a speaker's snippets are written to
type DirFunc func(speaker types.SpeakerLabel) string

// Under lays speaker directories out directly beneath root
func Under(root string) DirFunc {
	return func(speaker types.SpeakerLabel) string {
		return filepath.Join(root, SpeakerDirName(speaker))
	}
}

// Result lists the snippets written by Segment
type Result struct {
	Snippets []types.Snippet
	Speakers int
}

// Empty reports whether there was nothing to segment
func (r *Result) Empty() bool {
	return len(r.Snippets) == 0
}

// Paths returns the written file paths in write order
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Snippets))
	for i, s := range r.Snippets {
		paths[i] = s.Path
	}
	return paths
}

// Segmenter writes per-speaker snippets
type Segmenter struct {
	encoder audio.Encoder
	logger  zerolog.Logger
}

// NewSegmenter creates a segmenter that writes snippets with encoder
func NewSegmenter(encoder audio.Encoder, logger zerolog.Logger) *Segmenter {
	return &Segmenter{
		encoder: encoder,
		logger:  logger.With().Str("component", "segment").Logger(),
	}
}

// Segment writes dirFor(label)/<n>.wav for every utterance, with n counting
// from zero per speaker in the order the utterances were received.
// No utterances yields an empty Result and a nil error.
func (s *Segmenter) Segment(ctx context.Context, utterances []types.Utterance, track *audio.Track, dirFor DirFunc) (*Result, error) {
	bucket, err := Plan(utterances, track.DurationMs())
	if err != nil {
		return nil, err
	}

	result := &Result{Speakers: len(bucket.Speakers)}
	if len(utterances) == 0 {
		s.logger.Info().Msg("no utterances to segment")
		return result, nil
	}

	for _, speaker := range bucket.Speakers {
		dir := dirFor(speaker)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return result, fmt.Errorf("failed to create speaker directory: %v", err)
		}

		for idx, u := range bucket.Utterances[speaker] {
			path := filepath.Join(dir, fmt.Sprintf("%d%s", idx, SnippetExt))
			if err := s.encoder.Encode(ctx, track.Slice(u.Start, u.End), path); err != nil {
				return result, fmt.Errorf("failed to export snippet %s: %w", path, err)
			}
			s.logger.Debug().Str("speaker", string(speaker)).Int64("duration_ms", u.DurationMs()).Str("path", path).Msg("wrote snippet")
			result.Snippets = append(result.Snippets, types.Snippet{
				Speaker: speaker,
				Index:   idx,
				Path:    path,
				StartMs: u.Start,
				EndMs:   u.End,
			})
		}

		s.logger.Info().Str("speaker", string(speaker)).Int("snippets", bucket.Count(speaker)).Str("dir", dir).Msg("exported speaker snippets")
	}

	return result, nil
}
