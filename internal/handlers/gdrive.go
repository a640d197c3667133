package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/storage"
)

// DefaultDriveDownloadURL fetches a publicly shared Drive file by id
const DefaultDriveDownloadURL = "https://drive.google.com/uc?export=download&id=%s"

var (
	driveFilePattern = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveOpenPattern = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	driveIDPattern   = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
)

// GDriveHandler downloads shared Drive clips into a fresh input directory
// and queues a run over them
type GDriveHandler struct {
	queue       Enqueuer
	uploadRoot  string
	extension   string
	downloadURL string
	client      *http.Client
	logger      zerolog.Logger
}

// NewGDriveHandler creates a new Google Drive import handler. Downloaded
// clips are saved with extension so the ingestor picks them up.
func NewGDriveHandler(q Enqueuer, uploadRoot, extension string, logger zerolog.Logger) *GDriveHandler {
	return &GDriveHandler{
		queue:       q,
		uploadRoot:  uploadRoot,
		extension:   extension,
		downloadURL: DefaultDriveDownloadURL,
		client:      &http.Client{Timeout: 10 * time.Minute},
		logger:      logger.With().Str("component", "gdrive-import").Logger(),
	}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URLs []string `json:"urls"`
}

// Handle processes Google Drive link requests
func (h *GDriveHandler) Handle(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
	}
	if len(req.URLs) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_NO_URL", "At least one URL is required")
	}

	ids := make([]string, len(req.URLs))
	for i, u := range req.URLs {
		if ids[i] = ExtractDriveFileID(u); ids[i] == "" {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_URL",
				fmt.Sprintf("Invalid Google Drive URL: %s", u))
		}
	}

	inputDir := filepath.Join(h.uploadRoot, uuid.NewString())
	if err := storage.EnsureDir(inputDir); err != nil {
		h.logger.Error().Err(err).Msg("failed to create import directory")
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save files")
	}

	for i, id := range ids {
		dst := filepath.Join(inputDir, fmt.Sprintf("%03d_%s%s", i, id, h.extension))
		status, err := h.download(c, id, dst)
		if err != nil {
			h.logger.Error().Err(err).Str("file_id", id).Msg("failed to download from Google Drive")
			os.RemoveAll(inputDir)
			if status != 0 {
				return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_NOT_ACCESSIBLE",
					fmt.Sprintf("File %s not accessible (may be private or doesn't exist)", id))
			}
			return errorJSON(c, fiber.StatusBadGateway, "ERR_DOWNLOAD_FAILED", "Failed to download file from Google Drive")
		}
	}
	h.logger.Info().Int("clips", len(ids)).Str("dir", inputDir).Msg("clips imported from Google Drive")

	return enqueue(c, h.queue, inputDir, h.logger)
}

// download saves one file; a non-zero status means the service answered
// with something other than 200
func (h *GDriveHandler) download(c *fiber.Ctx, id, dst string) (int, error) {
	req, err := http.NewRequestWithContext(c.UserContext(), http.MethodGet, fmt.Sprintf(h.downloadURL, id), nil)
	if err != nil {
		return 0, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return 0, err
	}
	return 0, out.Close()
}

// ExtractDriveFileID extracts the file ID from the usual Google Drive URL
// shapes, or accepts a bare ID
func ExtractDriveFileID(url string) string {
	if m := driveFilePattern.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}
	if m := driveOpenPattern.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}
	if m := driveIDPattern.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}
	return ""
}
