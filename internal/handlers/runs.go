package handlers

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/queue"
	"github.com/codebuildervaibhav/speaker-splitter/internal/storage"
	"github.com/codebuildervaibhav/speaker-splitter/internal/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Enqueuer accepts runs for background processing
type Enqueuer interface {
	Enqueue(inputDir string) (*queue.Job, error)
}

// RunsHandler exposes run submission and the run ledger
type RunsHandler struct {
	queue        Enqueuer
	ledger       *storage.Ledger
	defaultInput string
	logger       zerolog.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(q Enqueuer, ledger *storage.Ledger, defaultInput string, logger zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		queue:        q,
		ledger:       ledger,
		defaultInput: defaultInput,
		logger:       logger.With().Str("component", "http").Logger(),
	}
}

// RunRequest is the body of POST /runs
type RunRequest struct {
	InputDir string `json:"input_dir"`
}

// Create queues a run over a directory already present on the server. The
// directory must be the configured input root or lie beneath it; relative
// paths are taken relative to that root.
func (h *RunsHandler) Create(c *fiber.Ctx) error {
	var req RunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
		}
	}

	dir, err := h.resolveInput(req.InputDir)
	if err != nil {
		h.logger.Warn().Str("input_dir", req.InputDir).Msg("rejected input directory outside the input root")
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INPUT_OUTSIDE_ROOT", "Input directory must be inside the configured input directory")
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_INPUT", "Input directory not found")
	}

	// a symlink inside the root may still point elsewhere
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		base := h.defaultInput
		if b, err := filepath.EvalSymlinks(base); err == nil {
			base = b
		}
		if !within(base, real) {
			h.logger.Warn().Str("input_dir", req.InputDir).Str("target", real).Msg("rejected input directory linking outside the input root")
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INPUT_OUTSIDE_ROOT", "Input directory must be inside the configured input directory")
		}
	}

	return enqueue(c, h.queue, dir, h.logger)
}

var errOutsideRoot = errors.New("input directory is outside the input root")

// resolveInput maps a requested directory onto an absolute path under the
// input root
func (h *RunsHandler) resolveInput(requested string) (string, error) {
	base, err := filepath.Abs(h.defaultInput)
	if err != nil {
		return "", err
	}
	if requested == "" {
		return base, nil
	}

	dir := requested
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	dir = filepath.Clean(dir)
	if !within(base, dir) {
		return "", errOutsideRoot
	}
	return dir, nil
}

// within reports whether path is base or a descendant of it
func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// List returns the most recent runs
func (h *RunsHandler) List(c *fiber.Ctx) error {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_LIMIT", "limit must be a positive integer")
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.ledger.ListRuns(limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list runs")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_LEDGER", "Failed to list runs")
	}
	return c.JSON(runs)
}

// RunResponse is a ledger row plus the snippets it produced
type RunResponse struct {
	*types.RunRecord
	Snippets []types.Snippet `json:"snippets"`
}

// Get returns one run and its snippets
func (h *RunsHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	run, err := h.ledger.GetRun(id)
	if errors.Is(err, storage.ErrRunNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Run not found")
	}
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", id).Msg("failed to get run")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_LEDGER", "Failed to get run")
	}

	snippets, err := h.ledger.ListSnippets(id)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", id).Msg("failed to list snippets")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_LEDGER", "Failed to list snippets")
	}

	return c.JSON(RunResponse{RunRecord: run, Snippets: snippets})
}

func enqueue(c *fiber.Ctx, q Enqueuer, inputDir string, logger zerolog.Logger) error {
	job, err := q.Enqueue(inputDir)
	switch {
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
		return errorJSON(c, fiber.StatusServiceUnavailable, "ERR_QUEUE_UNAVAILABLE", err.Error())
	case err != nil:
		logger.Error().Err(err).Str("input_dir", inputDir).Msg("failed to enqueue run")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_ENQUEUE_FAILED", "Failed to enqueue run")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id":    job.ID,
		"status":    job.Status,
		"input_dir": job.InputDir,
	})
}

func errorJSON(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}
