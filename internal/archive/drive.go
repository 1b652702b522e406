// Package archive mirrors journal entries and media into Google Drive: one
// folder per month, one styled Google Doc per day, media files uploaded next
// to the docs.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"
const documentMimeType = "application/vnd.google-apps.document"

// DriveAPI is the minimal Drive/Docs surface the archiver needs.
type DriveAPI interface {
	// CreateFolder creates a folder under the given parent and returns its ID.
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	// CreateDocument creates an empty Google Doc under the given parent and
	// returns its ID.
	CreateDocument(ctx context.Context, name, parentID string) (string, error)
	// UploadFile uploads a local file under the given parent and returns the
	// new file ID.
	UploadFile(ctx context.Context, path, mimeType, parentID string) (string, error)
	// AppendStyledText appends a styled paragraph to the end of a document.
	AppendStyledText(ctx context.Context, docID, text string, bold bool, hexColor string) error
}

// DriveClient implements DriveAPI over the Drive v3 and Docs v1 services.
type DriveClient struct {
	drive *drive.Service
	docs  *docs.Service
}

// NewDriveClient builds Drive and Docs services from a service account
// credentials file.
func NewDriveClient(ctx context.Context, credentialsFile string) (*DriveClient, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("service account credentials file not set")
	}

	driveSrv, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveScope, docs.DocumentsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	docsSrv, err := docs.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(docs.DocumentsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create docs service: %w", err)
	}

	slog.Debug("Drive client initialized")
	return &DriveClient{drive: driveSrv, docs: docsSrv}, nil
}

// CreateFolder creates a Drive folder and returns its ID.
func (c *DriveClient) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	f, err := c.drive.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	slog.Debug("DriveClient CreateFolder succeeded", "name", name, "id", f.Id)
	return f.Id, nil
}

// CreateDocument creates an empty Google Doc and returns its ID.
func (c *DriveClient) CreateDocument(ctx context.Context, name, parentID string) (string, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: documentMimeType,
	}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	f, err := c.drive.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create document %q: %w", name, err)
	}
	slog.Debug("DriveClient CreateDocument succeeded", "name", name, "id", f.Id)
	return f.Id, nil
}

// UploadFile uploads a local file into a Drive folder and returns the file ID.
func (c *DriveClient) UploadFile(ctx context.Context, path, mimeType, parentID string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open upload source: %w", err)
	}
	defer src.Close()

	meta := &drive.File{Name: filepath.Base(path)}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	call := c.drive.Files.Create(meta).Fields("id").Context(ctx)
	if mimeType != "" {
		call = call.Media(src, googleapi.ContentType(mimeType))
	} else {
		call = call.Media(src)
	}
	f, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", path, err)
	}
	slog.Debug("DriveClient UploadFile succeeded", "path", path, "id", f.Id)
	return f.Id, nil
}

// AppendStyledText inserts text at the document's end cursor and styles the
// inserted range with the given weight and color.
func (c *DriveClient) AppendStyledText(ctx context.Context, docID, text string, bold bool, hexColor string) error {
	doc, err := c.docs.Documents.Get(docID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read document %q: %w", docID, err)
	}
	start := endCursorPosition(doc)

	red, green, blue, err := hexToRGB(hexColor)
	if err != nil {
		return fmt.Errorf("invalid color %q: %w", hexColor, err)
	}

	inserted := text + "\n\n"
	requests := []*docs.Request{
		{
			InsertText: &docs.InsertTextRequest{
				Location: &docs.Location{Index: start},
				Text:     inserted,
			},
		},
		{
			UpdateTextStyle: &docs.UpdateTextStyleRequest{
				TextStyle: &docs.TextStyle{
					Bold:               bold,
					WeightedFontFamily: &docs.WeightedFontFamily{FontFamily: "Arial"},
					ForegroundColor: &docs.OptionalColor{
						Color: &docs.Color{
							RgbColor: &docs.RgbColor{
								Red:   float64(red) / 256,
								Green: float64(green) / 256,
								Blue:  float64(blue) / 256,
							},
						},
					},
					ForceSendFields: []string{"Bold"},
				},
				Range: &docs.Range{
					StartIndex: start,
					EndIndex:   start + int64(len(text)),
				},
				Fields: "bold,weightedFontFamily,foregroundColor",
			},
		},
	}

	_, err = c.docs.Documents.BatchUpdate(docID, &docs.BatchUpdateDocumentRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append to document %q: %w", docID, err)
	}
	return nil
}

// endCursorPosition returns the insert index at the end of the document body.
func endCursorPosition(doc *docs.Document) int64 {
	if doc.Body == nil || len(doc.Body.Content) == 0 {
		return 1
	}
	last := doc.Body.Content[len(doc.Body.Content)-1]
	if last.EndIndex <= 1 {
		return 1
	}
	return last.EndIndex - 1
}

// hexToRGB parses a 6-digit hex color into 8-bit components.
func hexToRGB(hex string) (int, int, int, error) {
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("expected 6 hex digits, got %q", hex)
	}
	var red, green, blue int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &red, &green, &blue); err != nil {
		return 0, 0, 0, err
	}
	return red, green, blue, nil
}
