package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mosesmc52/journal-bot/internal/models"
	"github.com/mosesmc52/journal-bot/internal/store"
)

// Layouts for the time bucket names.
const (
	monthLayout = "January-2006"
	dayLayout   = "January-2-2006"
)

// Text colors, 6-digit hex.
const (
	botColor  = "4a86e8"
	userColor = "000000"
)

// Archiver writes journal entries into day documents grouped under month
// folders, creating folders and documents lazily and remembering their IDs
// through the store's time buckets.
type Archiver struct {
	api            DriveAPI
	store          store.Store
	parentFolderID string
	loc            *time.Location
	http           *http.Client
}

// ArchiverOption configures an Archiver.
type ArchiverOption func(*Archiver)

// WithParentFolder sets the Drive folder that holds the month folders.
func WithParentFolder(id string) ArchiverOption {
	return func(a *Archiver) { a.parentFolderID = id }
}

// WithLocation sets the timezone the bucket names are derived in.
func WithLocation(loc *time.Location) ArchiverOption {
	return func(a *Archiver) { a.loc = loc }
}

// WithHTTPClient overrides the HTTP client used to download media.
func WithHTTPClient(c *http.Client) ArchiverOption {
	return func(a *Archiver) { a.http = c }
}

// NewArchiver creates an archiver over the given Drive API and store.
func NewArchiver(api DriveAPI, st store.Store, opts ...ArchiverOption) *Archiver {
	a := &Archiver{
		api:   api,
		store: st,
		loc:   time.UTC,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchiveEntry appends one journal entry to today's document: the speaker
// name in bold, then the text in plain black. Bot-authored lines get the bot
// color.
func (a *Archiver) ArchiveEntry(ctx context.Context, speaker, text string, bot bool) error {
	docID, err := a.ensureDayDocument(ctx)
	if err != nil {
		return err
	}

	color := userColor
	if bot {
		color = botColor
	}
	if err := a.api.AppendStyledText(ctx, docID, speaker+":", true, color); err != nil {
		return fmt.Errorf("failed to write speaker line: %w", err)
	}
	if err := a.api.AppendStyledText(ctx, docID, text, false, userColor); err != nil {
		return fmt.Errorf("failed to write entry text: %w", err)
	}
	slog.Debug("Archiver entry appended", "speaker", speaker, "doc", docID)
	return nil
}

// ArchiveMedia downloads a media attachment and uploads it into the current
// month folder. The temporary local copy is always removed.
func (a *Archiver) ArchiveMedia(ctx context.Context, srcURL, mimeType string) error {
	folderID, err := a.ensureMonthFolder(ctx)
	if err != nil {
		return err
	}

	path, err := a.download(ctx, srcURL, mimeType)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	if _, err := a.api.UploadFile(ctx, path, mimeType, folderID); err != nil {
		return fmt.Errorf("failed to upload media: %w", err)
	}
	slog.Debug("Archiver media uploaded", "url", srcURL, "folder", folderID)
	return nil
}

// ensureMonthFolder returns the Drive folder ID for the current month,
// creating and recording it on first use.
func (a *Archiver) ensureMonthFolder(ctx context.Context) (string, error) {
	name := time.Now().In(a.loc).Format(monthLayout)
	bucket, err := a.store.GetBucket(name)
	if err != nil {
		return "", fmt.Errorf("failed to look up month bucket: %w", err)
	}
	if bucket != nil && bucket.FolderID != "" {
		return bucket.FolderID, nil
	}

	folderID, err := a.api.CreateFolder(ctx, name, a.parentFolderID)
	if err != nil {
		return "", err
	}
	if err := a.store.SaveBucket(models.TimeBucket{Name: name, FolderID: folderID, CreatedAt: time.Now()}); err != nil {
		return "", fmt.Errorf("failed to record month bucket: %w", err)
	}
	slog.Info("Archiver month folder created", "name", name, "id", folderID)
	return folderID, nil
}

// ensureDayDocument returns the document ID for today, creating the doc in
// the month folder and recording it on first use.
func (a *Archiver) ensureDayDocument(ctx context.Context) (string, error) {
	name := time.Now().In(a.loc).Format(dayLayout)
	bucket, err := a.store.GetBucket(name)
	if err != nil {
		return "", fmt.Errorf("failed to look up day bucket: %w", err)
	}
	if bucket != nil && bucket.DocID != "" {
		return bucket.DocID, nil
	}

	folderID, err := a.ensureMonthFolder(ctx)
	if err != nil {
		return "", err
	}
	docID, err := a.api.CreateDocument(ctx, name, folderID)
	if err != nil {
		return "", err
	}
	if err := a.store.SaveBucket(models.TimeBucket{Name: name, FolderID: folderID, DocID: docID, CreatedAt: time.Now()}); err != nil {
		return "", fmt.Errorf("failed to record day bucket: %w", err)
	}
	slog.Info("Archiver day document created", "name", name, "id", docID)
	return docID, nil
}

// download fetches a URL into a temp file and returns its path. The caller
// removes the file.
func (a *Archiver) download(ctx context.Context, srcURL, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build media request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("media download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media download returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "journal-media-*"+extensionFor(mimeType))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp.Name(), nil
}

// extensionFor maps common media MIME types to a file extension.
func extensionFor(mimeType string) string {
	switch {
	case strings.HasSuffix(mimeType, "jpeg"), strings.HasSuffix(mimeType, "jpg"):
		return ".jpg"
	case strings.HasSuffix(mimeType, "png"):
		return ".png"
	case strings.HasSuffix(mimeType, "gif"):
		return ".gif"
	case strings.HasPrefix(mimeType, "video/"):
		return ".mp4"
	case strings.HasPrefix(mimeType, "audio/"):
		return ".ogg"
	default:
		return ""
	}
}
