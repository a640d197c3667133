package handlers

import (
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/audio"
	"github.com/codebuildervaibhav/speaker-splitter/internal/storage"
)

// UploadHandler accepts a batch of clips and queues a run over them
type UploadHandler struct {
	queue      Enqueuer
	uploadRoot string
	extensions []string
	maxSizeMB  int
	logger     zerolog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(q Enqueuer, uploadRoot string, extensions []string, maxSizeMB int, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		queue:      q,
		uploadRoot: uploadRoot,
		extensions: extensions,
		maxSizeMB:  maxSizeMB,
		logger:     logger.With().Str("component", "upload").Logger(),
	}
}

// Handle stores the "files" form entries in a fresh input directory. Files
// are prefixed with their form position so they combine in upload order.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_NO_FILE", "No files uploaded")
	}
	files := form.File["files"]

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	for _, file := range files {
		if !audio.MatchesExtension(file.Filename, h.extensions) {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT",
				fmt.Sprintf("Unsupported clip format: %s", file.Filename))
		}
		if h.maxSizeMB > 0 && file.Size > maxSize {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_TOO_LARGE",
				fmt.Sprintf("File too large (max %dMB): %s", h.maxSizeMB, file.Filename))
		}
	}

	inputDir := filepath.Join(h.uploadRoot, uuid.NewString())
	if err := storage.EnsureDir(inputDir); err != nil {
		h.logger.Error().Err(err).Msg("failed to create upload directory")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save files")
	}

	for i, file := range files {
		dst := filepath.Join(inputDir, fmt.Sprintf("%03d_%s", i, filepath.Base(file.Filename)))
		if err := c.SaveFile(file, dst); err != nil {
			h.logger.Error().Err(err).Str("file", file.Filename).Msg("failed to save uploaded clip")
			return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save files")
		}
	}
	h.logger.Info().Int("clips", len(files)).Str("dir", inputDir).Msg("clips uploaded")

	return enqueue(c, h.queue, inputDir, h.logger)
}
