package storage_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/codebuildervaibhav/speaker-splitter/internal/storage"
	"github.com/codebuildervaibhav/speaker-splitter/internal/types"
)

func openLedger(t *testing.T) *storage.Ledger {
	t.Helper()
	l, err := storage.NewLedger(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerRunLifecycle(t *testing.T) {
	l := openLedger(t)

	created, err := l.CreateRun("run-1", "/data/clips")
	if err != nil {
		t.Fatal(err)
	}
	if created.Status != types.StatusQueued {
		t.Fatalf("new run status = %s", created.Status)
	}

	if err := l.UpdateRunStatus("run-1", types.StatusProcessing, ""); err != nil {
		t.Fatal(err)
	}
	if err := l.SetFinalAudio("run-1", "/tmp/final.mp3", "https://drive.google.com/uc?id=abc"); err != nil {
		t.Fatal(err)
	}

	snippets := []types.Snippet{
		{Speaker: "A", Index: 0, Path: "out/speaker_A/0.wav", StartMs: 0, EndMs: 1000},
		{Speaker: "A", Index: 1, Path: "out/speaker_A/1.wav", StartMs: 2000, EndMs: 2500},
		{Speaker: "B", Index: 0, Path: "out/speaker_B/0.wav", StartMs: 1000, EndMs: 2000},
	}
	if err := l.CompleteRun("run-1", 3, snippets); err != nil {
		t.Fatal(err)
	}

	run, err := l.GetRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != types.StatusCompleted || run.UtteranceCount != 3 || run.SpeakerCount != 2 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.PublicURL != "https://drive.google.com/uc?id=abc" || run.InputDir != "/data/clips" {
		t.Fatalf("unexpected run %+v", run)
	}

	got, err := l.ListSnippets("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(snippets) {
		t.Fatalf("expected %d snippets, got %d", len(snippets), len(got))
	}
	for i := range snippets {
		if got[i] != snippets[i] {
			t.Errorf("snippet %d = %+v, want %+v", i, got[i], snippets[i])
		}
	}
}

func TestLedgerFailedRunKeepsError(t *testing.T) {
	l := openLedger(t)
	if _, err := l.CreateRun("run-2", "in"); err != nil {
		t.Fatal(err)
	}
	if err := l.UpdateRunStatus("run-2", types.StatusFailed, "separate: demucs exited with status 1"); err != nil {
		t.Fatal(err)
	}
	run, err := l.GetRun("run-2")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != types.StatusFailed || run.Error != "separate: demucs exited with status 1" {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestLedgerUnknownRun(t *testing.T) {
	l := openLedger(t)
	if _, err := l.GetRun("missing"); !errors.Is(err, storage.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := l.UpdateRunStatus("missing", types.StatusFailed, ""); !errors.Is(err, storage.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestLedgerListRunsNewestFirst(t *testing.T) {
	l := openLedger(t)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := l.CreateRun(id, "in"); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := l.ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != "c" || runs[1].RunID != "b" {
		ids := make([]string, len(runs))
		for i, r := range runs {
			ids[i] = r.RunID
		}
		t.Fatalf("unexpected order %v", ids)
	}
}
