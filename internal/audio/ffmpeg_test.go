package audio_test

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/codebuildervaibhav/speaker-splitter/internal/audio"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
}

func TestFFmpegRoundTrip(t *testing.T) {
	requireFFmpeg(t)

	ctx := context.Background()
	codec := audio.NewFFmpeg("", audio.CanonicalFormat)
	path := filepath.Join(t.TempDir(), "tone.wav")

	src := tone(audio.CanonicalFormat, 1500, 8000)
	if err := codec.Encode(ctx, src, path); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := codec.Decode(ctx, path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Format != audio.CanonicalFormat {
		t.Fatalf("unexpected format %s", got.Format)
	}
	if got.DurationMs() != 1500 {
		t.Fatalf("expected 1500ms, got %d", got.DurationMs())
	}
}

func TestFFmpegDecodeError(t *testing.T) {
	requireFFmpeg(t)

	codec := audio.NewFFmpeg("ffmpeg", audio.CanonicalFormat)
	_, err := codec.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))

	var decodeErr *audio.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decodeErr.Output == "" {
		t.Fatal("expected ffmpeg diagnostics in the error")
	}
}
