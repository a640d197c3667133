package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Decoder turns a media file into a Track
type Decoder interface {
	Decode(ctx context.Context, path string) (*Track, error)
}

// Encoder writes a Track to a media file
type Encoder interface {
	Encode(ctx context.Context, track *Track, path string) error
}

// FFmpeg decodes any container ffmpeg understands and encodes to the format
// implied by the output file extension (mp3 for the final artifact).
type FFmpeg struct {
	binary string
	format Format
}

// NewFFmpeg creates an ffmpeg codec that decodes into the given format
func NewFFmpeg(binary string, format Format) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary, format: format}
}

// Decode converts a media file to raw PCM in the codec's format
func (f *FFmpeg) Decode(ctx context.Context, path string) (*Track, error) {
	raw, err := rawFormat(f.format.SampleWidth)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	cmd := exec.CommandContext(ctx, f.binary,
		"-nostdin",
		"-v", "error",
		"-i", path,
		"-vn",                                  // drop video streams
		"-ac", strconv.Itoa(f.format.Channels), // down-mix
		"-ar", strconv.Itoa(f.format.SampleRate),
		"-f", raw,
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &DecodeError{Path: path, Output: strings.TrimSpace(stderr.String()), Err: err}
	}

	return &Track{
		Format:  f.format,
		Samples: unpackPCM(stdout.Bytes(), f.format.SampleWidth),
	}, nil
}

// Encode pipes the track into ffmpeg; the container is chosen from the path
func (f *FFmpeg) Encode(ctx context.Context, track *Track, path string) error {
	raw, err := rawFormat(track.Format.SampleWidth)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, f.binary,
		"-nostdin",
		"-v", "error",
		"-f", raw,
		"-ac", strconv.Itoa(track.Format.Channels),
		"-ar", strconv.Itoa(track.Format.SampleRate),
		"-i", "pipe:0",
		"-y", // Overwrite output
		path,
	)
	cmd.Stdin = bytes.NewReader(packPCM(track.Samples, track.Format.SampleWidth))

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg encode to %s failed: %v\nOutput: %s", path, err, string(output))
	}
	return nil
}

// MatchesExtension reports whether filename ends in one of the given extensions
func MatchesExtension(filename string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, want := range extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
