package separation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for the demucs invocation
const (
	DefaultModel     = "htdemucs"
	DefaultVocalFile = "vocals.wav"
	DefaultTimeout   = 30 * time.Minute
)

// Separator isolates the vocal stem of an audio file
type Separator interface {
	Separate(ctx context.Context, sourcePath, targetDir string) (string, error)
}

// Error is returned when the separation job fails, times out or does not
// leave its vocal track where expected.
type Error struct {
	Source   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("vocal separation of %s failed (exit code %d): %v", e.Source, e.ExitCode, e.Err)
	if e.Stderr != "" {
		msg += "\nOutput: " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config configures the demucs invocation
type Config struct {
	Python    string
	Model     string
	ExtraArgs []string
	Timeout   time.Duration
}

// Demucs runs `python -m demucs` as an out-of-process batch job
type Demucs struct {
	python    string
	model     string
	extraArgs []string
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewDemucs creates a separator around the demucs python module
func NewDemucs(cfg Config, logger zerolog.Logger) *Demucs {
	d := &Demucs{
		python:    cfg.Python,
		model:     cfg.Model,
		extraArgs: cfg.ExtraArgs,
		timeout:   cfg.Timeout,
		logger:    logger.With().Str("component", "separation").Logger(),
	}
	if d.python == "" {
		d.python = "python"
	}
	if d.model == "" {
		d.model = DefaultModel
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	return d
}

// VocalPath returns where demucs leaves the vocal stem for sourcePath
func (d *Demucs) VocalPath(sourcePath, targetDir string) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return filepath.Join(targetDir, d.model, stem, DefaultVocalFile)
}

// Separate runs demucs on sourcePath and returns the path of the vocal stem.
// Only the exit status decides success; stdout is never parsed.
func (d *Demucs) Separate(ctx context.Context, sourcePath, targetDir string) (string, error) {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", &Error{Source: sourcePath, ExitCode: -1, Err: fmt.Errorf("failed to create target directory: %v", err)}
	}

	absSource, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", &Error{Source: sourcePath, ExitCode: -1, Err: fmt.Errorf("failed to get absolute path: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := []string{"-m", "demucs", "-n", d.model, "-o", targetDir}
	args = append(args, d.extraArgs...)
	args = append(args, absSource)

	cmd := exec.CommandContext(ctx, d.python, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.logger.Info().Str("source", sourcePath).Str("model", d.model).Dur("timeout", d.timeout).Msg("separating vocals")
	start := time.Now()

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("killed after %s: %w", d.timeout, ctx.Err())
		}
		return "", &Error{
			Source:   sourcePath,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	vocals := d.VocalPath(sourcePath, targetDir)
	if _, err := os.Stat(vocals); err != nil {
		return "", &Error{
			Source: sourcePath,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    fmt.Errorf("expected vocal track missing: %v", err),
		}
	}

	d.logger.Info().Str("vocals", vocals).Dur("took", time.Since(start)).Msg("vocal separation finished")
	return vocals, nil
}
