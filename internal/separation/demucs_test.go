package separation_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/separation"
)

// fakePython writes a shell script that stands in for `python -m demucs`
func fakePython(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "python")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

// args: -m demucs -n MODEL -o OUT [extra...] SOURCE
const writesVocals = `model=$4
out=$6
eval src=\${$#}
stem=$(basename "$src")
stem=${stem%.*}
mkdir -p "$out/$model/$stem"
echo "separated" > "$out/$model/$stem/vocals.wav"
echo "Separated tracks will be stored in $out/$model"`

func TestSeparateReturnsConventionalPath(t *testing.T) {
	python := fakePython(t, writesVocals)
	target := filepath.Join(t.TempDir(), "temp", "nested")

	d := separation.NewDemucs(separation.Config{Python: python}, zerolog.Nop())
	vocals, err := d.Separate(context.Background(), "/tmp/combined.wav", target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join(target, "htdemucs", "combined", "vocals.wav")
	if vocals != want {
		t.Fatalf("vocal path = %s, want %s", vocals, want)
	}
	if _, err := os.Stat(vocals); err != nil {
		t.Fatalf("vocal track not written: %v", err)
	}
}

func TestSeparateCustomModel(t *testing.T) {
	python := fakePython(t, writesVocals)
	d := separation.NewDemucs(separation.Config{
		Python:    python,
		Model:     "mdx_extra",
		ExtraArgs: []string{"--two-stems=vocals"},
	}, zerolog.Nop())

	target := t.TempDir()
	vocals, err := d.Separate(context.Background(), "mix.mp3", target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vocals != filepath.Join(target, "mdx_extra", "mix", "vocals.wav") {
		t.Fatalf("unexpected vocal path %s", vocals)
	}
}

func TestSeparateNonZeroExit(t *testing.T) {
	python := fakePython(t, `echo "No module named demucs" >&2
exit 1`)
	d := separation.NewDemucs(separation.Config{Python: python}, zerolog.Nop())

	_, err := d.Separate(context.Background(), "combined.wav", t.TempDir())
	var sepErr *separation.Error
	if !errors.As(err, &sepErr) {
		t.Fatalf("expected separation error, got %v", err)
	}
	if sepErr.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1", sepErr.ExitCode)
	}
	if !strings.Contains(sepErr.Stderr, "No module named demucs") {
		t.Fatalf("stderr not captured: %q", sepErr.Stderr)
	}
}

func TestSeparateMissingOutput(t *testing.T) {
	python := fakePython(t, `exit 0`)
	d := separation.NewDemucs(separation.Config{Python: python}, zerolog.Nop())

	_, err := d.Separate(context.Background(), "combined.wav", t.TempDir())
	var sepErr *separation.Error
	if !errors.As(err, &sepErr) {
		t.Fatalf("expected separation error for missing output, got %v", err)
	}
}

func TestSeparateTimeout(t *testing.T) {
	python := fakePython(t, `exec sleep 5`)
	d := separation.NewDemucs(separation.Config{Python: python, Timeout: 100 * time.Millisecond}, zerolog.Nop())

	start := time.Now()
	_, err := d.Separate(context.Background(), "combined.wav", t.TempDir())
	if time.Since(start) > 3*time.Second {
		t.Fatal("separation was not stopped at its timeout")
	}
	var sepErr *separation.Error
	if !errors.As(err, &sepErr) {
		t.Fatalf("expected separation error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
