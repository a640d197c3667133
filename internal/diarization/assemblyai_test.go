package diarization_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-splitter/internal/diarization"
	"github.com/codebuildervaibhav/speaker-splitter/internal/types"
)

// fakeService emulates the transcript endpoints; the job reports
// "processing" for the first pendingPolls GETs and then finalBody.
func fakeService(t *testing.T, pendingPolls int32, finalBody string) (*httptest.Server, *int32) {
	t.Helper()
	var polls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "test-key" {
			http.Error(w, `{"error":"Authentication error"}`, http.StatusUnauthorized)
			return
		}
		var req struct {
			AudioURL      string `json:"audio_url"`
			SpeakerLabels bool   `json:"speaker_labels"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AudioURL == "" || !req.SpeakerLabels {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"id":"job-1","status":"queued"}`))
	})
	mux.HandleFunc("/v2/transcript/job-1", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) <= pendingPolls {
			w.Write([]byte(`{"id":"job-1","status":"processing"}`))
			return
		}
		w.Write([]byte(finalBody))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func newClient(baseURL, key string) *diarization.AssemblyAI {
	return diarization.NewAssemblyAI(diarization.Config{
		BaseURL:         baseURL,
		APIKey:          key,
		PollInterval:    5 * time.Millisecond,
		MaxPollInterval: 20 * time.Millisecond,
		MaxWait:         5 * time.Second,
	}, zerolog.Nop())
}

func TestDiarizePreservesEmissionOrder(t *testing.T) {
	srv, polls := fakeService(t, 2, `{"id":"job-1","status":"completed","utterances":[
		{"speaker":"A","start":0,"end":1000,"text":"hi"},
		{"speaker":"B","start":1000,"end":2000,"text":"hello"},
		{"speaker":"A","start":2000,"end":2500,"text":"bye"}]}`)

	got, err := newClient(srv.URL, "test-key").Diarize(context.Background(), "https://example.com/a.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []types.Utterance{
		{Speaker: "A", Start: 0, End: 1000},
		{Speaker: "B", Start: 1000, End: 2000},
		{Speaker: "A", Start: 2000, End: 2500},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d utterances, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("utterance %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if n := atomic.LoadInt32(polls); n != 3 {
		t.Fatalf("expected 3 polls, got %d", n)
	}
}

func TestDiarizeNoUtterances(t *testing.T) {
	srv, _ := fakeService(t, 0, `{"id":"job-1","status":"completed","utterances":null}`)

	got, err := newClient(srv.URL, "test-key").Diarize(context.Background(), "https://example.com/a.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no utterances, got %v", got)
	}
}

func TestDiarizeJobError(t *testing.T) {
	srv, _ := fakeService(t, 1, `{"id":"job-1","status":"error","error":"Download error, unable to download"}`)

	_, err := newClient(srv.URL, "test-key").Diarize(context.Background(), "https://example.com/a.mp3")
	var trErr *diarization.TranscriptionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if trErr.Status != diarization.StatusError || trErr.JobID != "job-1" {
		t.Fatalf("unexpected error details %+v", trErr)
	}
	if trErr.Message != "Download error, unable to download" {
		t.Fatalf("service message not carried: %q", trErr.Message)
	}
}

func TestDiarizeRejectedSubmission(t *testing.T) {
	srv, polls := fakeService(t, 0, `{}`)

	_, err := newClient(srv.URL, "wrong-key").Diarize(context.Background(), "https://example.com/a.mp3")
	var trErr *diarization.TranscriptionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if trErr.Status != "submit_failed" {
		t.Fatalf("status = %q, want submit_failed", trErr.Status)
	}
	if atomic.LoadInt32(polls) != 0 {
		t.Fatal("a rejected job must not be polled")
	}
}

func TestDiarizeGivesUpAfterMaxWait(t *testing.T) {
	srv, _ := fakeService(t, 1<<30, `{}`)

	client := diarization.NewAssemblyAI(diarization.Config{
		BaseURL:         srv.URL,
		APIKey:          "test-key",
		PollInterval:    5 * time.Millisecond,
		MaxPollInterval: 10 * time.Millisecond,
		MaxWait:         100 * time.Millisecond,
	}, zerolog.Nop())

	_, err := client.Diarize(context.Background(), "https://example.com/a.mp3")
	var trErr *diarization.TranscriptionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if trErr.Status != "poll_failed" {
		t.Fatalf("status = %q, want poll_failed", trErr.Status)
	}
}

func TestDiarizeContextCanceled(t *testing.T) {
	srv, _ := fakeService(t, 1<<30, `{}`)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newClient(srv.URL, "test-key").Diarize(ctx, "https://example.com/a.mp3")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
