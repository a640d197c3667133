package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// PublishError is returned when the final audio cannot be handed to the remote store
type PublishError struct {
	Path string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish %s: %v", e.Path, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Publisher makes a local file reachable by URL
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// DriveClient publishes files to Google Drive with public read access
type DriveClient struct {
	service    *drive.Service
	folderName string
	folderID   string
	attempts   uint64
	backoff    time.Duration
	logger     zerolog.Logger
}

// NewDriveClient creates a new Google Drive client from OAuth client
// credentials and a cached token file.
func NewDriveClient(ctx context.Context, credentialsFile, tokenFile, folderName string, logger zerolog.Logger) (*DriveClient, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client, err := getClient(ctx, config, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %v", err)
	}

	return NewDriveClientWithService(ctx, srv, folderName, logger)
}

// NewDriveClientWithService wraps an existing Drive service and resolves the
// upload folder, creating it when missing.
func NewDriveClientWithService(ctx context.Context, srv *drive.Service, folderName string, logger zerolog.Logger) (*DriveClient, error) {
	dc := &DriveClient{
		service:    srv,
		folderName: folderName,
		attempts:   3,
		backoff:    time.Second,
		logger:     logger.With().Str("component", "gdrive").Logger(),
	}

	if folderName != "" {
		if err := dc.ensureFolder(ctx); err != nil {
			return nil, err
		}
	}

	return dc, nil
}

// getClient retrieves a token, saves the token, then returns the generated client
func getClient(ctx context.Context, config *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}
	return config.Client(ctx, tok), nil
}

// getTokenFromWeb requests a token from the web
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser:\n%v\n", authURL)
	fmt.Print("Enter authorization code: ")

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %v", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %v", err)
	}
	return tok, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// saveToken saves a token to a file path
func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %v", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// ensureFolder finds or creates the upload folder
func (dc *DriveClient) ensureFolder(ctx context.Context) error {
	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false",
		dc.folderName)

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to search for folder: %v", err)
	}

	if len(r.Files) > 0 {
		dc.folderID = r.Files[0].Id
		return nil
	}

	folder := &drive.File{
		Name:     dc.folderName,
		MimeType: "application/vnd.google-apps.folder",
	}

	file, err := dc.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to create folder: %v", err)
	}

	dc.folderID = file.Id
	return nil
}

// Publish uploads the file, grants anyone-with-the-link read access and
// returns a direct download URL.
func (dc *DriveClient) Publish(ctx context.Context, localPath string) (string, error) {
	var fileID string
	err := dc.retry(ctx, "upload", func() error {
		id, err := dc.upload(ctx, localPath)
		fileID = id
		return err
	})
	if err != nil {
		return "", &PublishError{Path: localPath, Err: err}
	}

	err = dc.retry(ctx, "share", func() error {
		_, err := dc.service.Permissions.Create(fileID, &drive.Permission{
			Type: "anyone",
			Role: "reader",
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", &PublishError{Path: localPath, Err: fmt.Errorf("uploaded as %s but sharing failed: %w", fileID, err)}
	}

	url := fmt.Sprintf("https://drive.google.com/uc?id=%s", fileID)
	dc.logger.Info().Str("file", localPath).Str("file_id", fileID).Str("url", url).Msg("published to Google Drive")
	return url, nil
}

func (dc *DriveClient) upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	defer f.Close()

	meta := &drive.File{Name: filepath.Base(localPath)}
	if dc.folderID != "" {
		meta.Parents = []string{dc.folderID}
	}

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	created, err := dc.service.Files.Create(meta).
		Media(f, googleapi.ContentType(contentType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// retry runs op with exponential backoff, up to dc.attempts times
func (dc *DriveClient) retry(ctx context.Context, step string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = dc.backoff

	notify := func(err error, wait time.Duration) {
		dc.logger.Warn().Err(err).Str("step", step).Dur("retry_in", wait).Msg("Google Drive call failed")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, dc.attempts-1), ctx)
	return backoff.RetryNotify(op, b, notify)
}
