package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codebuildervaibhav/speaker-splitter/internal/segment"
	"github.com/codebuildervaibhav/speaker-splitter/internal/types"
)

// ManifestFile is written at the root of every run workspace
const ManifestFile = "manifest.json"

// Workspace is the per-run output directory, <outputRoot>/<runID>. It is never
// removed automatically.
type Workspace struct {
	root  string
	runID string
}

// NewWorkspace creates the run directory if it doesn't exist
func NewWorkspace(outputRoot, runID string) (*Workspace, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	ws := &Workspace{root: outputRoot, runID: runID}
	if err := EnsureDir(ws.Dir()); err != nil {
		return nil, fmt.Errorf("failed to create run workspace: %v", err)
	}
	return ws, nil
}

// Dir returns the workspace directory
func (ws *Workspace) Dir() string {
	return filepath.Join(ws.root, ws.runID)
}

// Manifest summarises what a run produced
type Manifest struct {
	RunID          string          `json:"run_id"`
	InputDir       string          `json:"input_dir"`
	FinalAudioPath string          `json:"final_audio_path"`
	PublicURL      string          `json:"public_url"`
	Utterances     int             `json:"utterances"`
	Speakers       int             `json:"speakers"`
	Snippets       []types.Snippet `json:"snippets"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SaveManifest writes manifest.json into the workspace
func (ws *Workspace) SaveManifest(m *Manifest) (string, error) {
	m.RunID = ws.runID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Snippets == nil {
		m.Snippets = []types.Snippet{}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %v", err)
	}

	path := filepath.Join(ws.Dir(), ManifestFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save manifest: %v", err)
	}
	return path, nil
}

// EnsureDir creates dir and its parents; existing directories are left alone
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// SpeakerDir returns the directory holding a speaker's snippets
func (ws *Workspace) SpeakerDir(speaker types.SpeakerLabel) string {
	return filepath.Join(ws.Dir(), segment.SpeakerDirName(speaker))
}
