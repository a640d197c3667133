package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// fakeDrive answers the handful of Drive v3 calls the publisher makes.
// The first failUploads media uploads return 503.
func fakeDrive(t *testing.T, failUploads int32) (*drive.Service, *int32, *int32) {
	t.Helper()
	var uploads, shares int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/files"):
			w.Write([]byte(`{"files":[{"id":"folder-1","name":"speaker-splitter"}]}`))
		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/permissions"):
			atomic.AddInt32(&shares, 1)
			w.Write([]byte(`{"id":"perm-1"}`))
		case r.Method == http.MethodPost:
			if atomic.AddInt32(&uploads, 1) <= failUploads {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":{"code":503,"message":"backend error"}}`))
				return
			}
			w.Write([]byte(`{"id":"file-123"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("drive service: %v", err)
	}
	return svc, &uploads, &shares
}

func tempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "final.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPublishReturnsDirectURL(t *testing.T) {
	svc, uploads, shares := fakeDrive(t, 0)
	dc, err := NewDriveClientWithService(context.Background(), svc, "speaker-splitter", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if dc.folderID != "folder-1" {
		t.Fatalf("folder id = %q", dc.folderID)
	}

	url, err := dc.Publish(context.Background(), tempAudio(t))
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://drive.google.com/uc?id=file-123" {
		t.Fatalf("unexpected url %s", url)
	}
	if *uploads != 1 || *shares != 1 {
		t.Fatalf("uploads=%d shares=%d", *uploads, *shares)
	}
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	svc, uploads, _ := fakeDrive(t, 2)
	dc, err := NewDriveClientWithService(context.Background(), svc, "", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	dc.backoff = time.Millisecond

	if _, err := dc.Publish(context.Background(), tempAudio(t)); err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if *uploads != 3 {
		t.Fatalf("expected 3 upload attempts, got %d", *uploads)
	}
}

func TestPublishGivesUp(t *testing.T) {
	svc, uploads, shares := fakeDrive(t, 100)
	dc, err := NewDriveClientWithService(context.Background(), svc, "", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	dc.backoff = time.Millisecond

	_, err = dc.Publish(context.Background(), tempAudio(t))
	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if *uploads != 3 || *shares != 0 {
		t.Fatalf("uploads=%d shares=%d", *uploads, *shares)
	}
}

func TestPublishMissingFileIsNotRetried(t *testing.T) {
	svc, uploads, _ := fakeDrive(t, 0)
	dc, err := NewDriveClientWithService(context.Background(), svc, "", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	_, err = dc.Publish(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	var pubErr *PublishError
	if !errors.As(err, &pubErr) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected PublishError wrapping ErrNotExist, got %v", err)
	}
	if *uploads != 0 {
		t.Fatalf("expected no upload attempts, got %d", *uploads)
	}
}
