package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/speaker-splitter/internal/types"
)

// ErrRunNotFound is returned when the ledger has no row for a run id
var ErrRunNotFound = errors.New("run not found")

// Ledger records runs and the snippets they produced in SQLite
type Ledger struct {
	db *sql.DB
}

// NewLedger opens (or creates) the ledger database
func NewLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// one writer at a time keeps sqlite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		input_dir TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		final_audio_path TEXT NOT NULL DEFAULT '',
		public_url TEXT NOT NULL DEFAULT '',
		utterance_count INTEGER NOT NULL DEFAULT 0,
		speaker_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snippets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		speaker TEXT NOT NULL DEFAULT '',
		idx INTEGER NOT NULL,
		path TEXT NOT NULL DEFAULT '',
		start_ms INTEGER NOT NULL,
		end_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_snippets_run_id ON snippets(run_id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	return &Ledger{db: db}, nil
}

// CreateRun inserts a new run in the QUEUED state
func (l *Ledger) CreateRun(runID, inputDir string) (*types.RunRecord, error) {
	now := time.Now().UTC()
	_, err := l.db.Exec(
		`INSERT INTO runs (run_id, input_dir, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, inputDir, types.StatusQueued, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %v", err)
	}
	return &types.RunRecord{
		RunID:     runID,
		InputDir:  inputDir,
		Status:    types.StatusQueued,
		CreatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
		UpdatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

// UpdateRunStatus moves a run to status; errMsg is stored as-is
func (l *Ledger) UpdateRunStatus(runID, status, errMsg string) error {
	res, err := l.db.Exec(
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE run_id = ?`,
		status, errMsg, time.Now().UTC().UnixMilli(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run status: %v", err)
	}
	return checkAffected(res)
}

// SetFinalAudio stores the final audio location once it has been published
func (l *Ledger) SetFinalAudio(runID, path, publicURL string) error {
	res, err := l.db.Exec(
		`UPDATE runs SET final_audio_path = ?, public_url = ?, updated_at = ? WHERE run_id = ?`,
		path, publicURL, time.Now().UTC().UnixMilli(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to store final audio: %v", err)
	}
	return checkAffected(res)
}

// CompleteRun marks the run COMPLETED and records its snippets in one transaction
func (l *Ledger) CompleteRun(runID string, utterances int, snippets []types.Snippet) error {
	speakers := make(map[types.SpeakerLabel]struct{})
	for _, s := range snippets {
		speakers[s.Speaker] = struct{}{}
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE runs SET status = ?, utterance_count = ?, speaker_count = ?, error = '', updated_at = ? WHERE run_id = ?`,
		types.StatusCompleted, utterances, len(speakers), time.Now().UTC().UnixMilli(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %v", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM snippets WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear snippets: %v", err)
	}
	for _, s := range snippets {
		_, err := tx.Exec(
			`INSERT INTO snippets (run_id, speaker, idx, path, start_ms, end_ms) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, string(s.Speaker), s.Index, s.Path, s.StartMs, s.EndMs,
		)
		if err != nil {
			return fmt.Errorf("failed to save snippet: %v", err)
		}
	}

	return tx.Commit()
}

const runColumns = `run_id, input_dir, status, final_audio_path, public_url, utterance_count, speaker_count, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*types.RunRecord, error) {
	var (
		r                types.RunRecord
		created, updated int64
	)
	err := row.Scan(&r.RunID, &r.InputDir, &r.Status, &r.FinalAudioPath, &r.PublicURL,
		&r.UtteranceCount, &r.SpeakerCount, &r.Error, &created, &updated)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.UpdatedAt = time.UnixMilli(updated).UTC()
	return &r, nil
}

// GetRun retrieves a run by id
func (l *Ledger) GetRun(runID string) (*types.RunRecord, error) {
	r, err := scanRun(l.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %v", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first
func (l *Ledger) ListRuns(limit int) ([]*types.RunRecord, error) {
	rows, err := l.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %v", err)
	}
	defer rows.Close()

	runs := []*types.RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read run: %v", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListSnippets returns the snippets of a run in the order they were written
func (l *Ledger) ListSnippets(runID string) ([]types.Snippet, error) {
	rows, err := l.db.Query(
		`SELECT speaker, idx, path, start_ms, end_ms FROM snippets WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets: %v", err)
	}
	defer rows.Close()

	snippets := []types.Snippet{}
	for rows.Next() {
		var (
			s       types.Snippet
			speaker string
		)
		if err := rows.Scan(&speaker, &s.Index, &s.Path, &s.StartMs, &s.EndMs); err != nil {
			return nil, fmt.Errorf("failed to read snippet: %v", err)
		}
		s.Speaker = types.SpeakerLabel(speaker)
		snippets = append(snippets, s)
	}
	return snippets, rows.Err()
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}
