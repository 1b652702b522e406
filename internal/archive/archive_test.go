package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mosesmc52/journal-bot/internal/store"
)

// fakeDrive records calls and hands out deterministic IDs.
type fakeDrive struct {
	folders   []string
	documents []string
	uploads   []string
	appended  []string
	bold      []bool
	colors    []string
}

func (f *fakeDrive) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	f.folders = append(f.folders, name)
	return "folder-" + name, nil
}

func (f *fakeDrive) CreateDocument(ctx context.Context, name, parentID string) (string, error) {
	f.documents = append(f.documents, name)
	return "doc-" + name, nil
}

func (f *fakeDrive) UploadFile(ctx context.Context, path, mimeType, parentID string) (string, error) {
	f.uploads = append(f.uploads, parentID)
	return "file-1", nil
}

func (f *fakeDrive) AppendStyledText(ctx context.Context, docID, text string, bold bool, hexColor string) error {
	f.appended = append(f.appended, text)
	f.bold = append(f.bold, bold)
	f.colors = append(f.colors, hexColor)
	return nil
}

func TestArchiveEntryCreatesBucketsLazily(t *testing.T) {
	drive := &fakeDrive{}
	st := store.NewInMemoryStore()
	a := NewArchiver(drive, st, WithParentFolder("root"))

	if err := a.ArchiveEntry(context.Background(), "Samantha", "hello there", true); err != nil {
		t.Fatalf("ArchiveEntry failed: %v", err)
	}

	monthName := time.Now().UTC().Format(monthLayout)
	dayName := time.Now().UTC().Format(dayLayout)
	if len(drive.folders) != 1 || drive.folders[0] != monthName {
		t.Errorf("expected month folder %q created, got %v", monthName, drive.folders)
	}
	if len(drive.documents) != 1 || drive.documents[0] != dayName {
		t.Errorf("expected day document %q created, got %v", dayName, drive.documents)
	}

	// Speaker line is bold and tinted, body is plain black.
	if len(drive.appended) != 2 {
		t.Fatalf("expected 2 appended segments, got %d", len(drive.appended))
	}
	if drive.appended[0] != "Samantha:" || !drive.bold[0] || drive.colors[0] != botColor {
		t.Errorf("unexpected speaker segment: %q bold=%v color=%q", drive.appended[0], drive.bold[0], drive.colors[0])
	}
	if drive.appended[1] != "hello there" || drive.bold[1] || drive.colors[1] != userColor {
		t.Errorf("unexpected body segment: %q bold=%v color=%q", drive.appended[1], drive.bold[1], drive.colors[1])
	}
}

func TestArchiveEntryReusesRecordedBuckets(t *testing.T) {
	drive := &fakeDrive{}
	st := store.NewInMemoryStore()
	a := NewArchiver(drive, st)

	for i := 0; i < 3; i++ {
		if err := a.ArchiveEntry(context.Background(), "me", "entry", false); err != nil {
			t.Fatalf("ArchiveEntry failed: %v", err)
		}
	}
	if len(drive.folders) != 1 {
		t.Errorf("expected one folder creation, got %d", len(drive.folders))
	}
	if len(drive.documents) != 1 {
		t.Errorf("expected one document creation, got %d", len(drive.documents))
	}
	if len(drive.appended) != 6 {
		t.Errorf("expected 6 appended segments, got %d", len(drive.appended))
	}
}

func TestArchiveMediaDownloadsAndUploads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	drive := &fakeDrive{}
	st := store.NewInMemoryStore()
	a := NewArchiver(drive, st, WithParentFolder("root"))

	if err := a.ArchiveMedia(context.Background(), srv.URL+"/media/1", "image/jpeg"); err != nil {
		t.Fatalf("ArchiveMedia failed: %v", err)
	}
	if len(drive.uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(drive.uploads))
	}
	monthName := time.Now().UTC().Format(monthLayout)
	if drive.uploads[0] != "folder-"+monthName {
		t.Errorf("expected upload into month folder, got %q", drive.uploads[0])
	}
}

func TestArchiveMediaDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	drive := &fakeDrive{}
	a := NewArchiver(drive, store.NewInMemoryStore())

	err := a.ArchiveMedia(context.Background(), srv.URL+"/gone", "image/png")
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Errorf("expected download status error, got %v", err)
	}
	if len(drive.uploads) != 0 {
		t.Errorf("expected no upload after failed download, got %d", len(drive.uploads))
	}
}

func TestHexToRGB(t *testing.T) {
	tests := []struct {
		hex     string
		r, g, b int
		wantErr bool
	}{
		{"000000", 0, 0, 0, false},
		{"ffffff", 255, 255, 255, false},
		{"4a86e8", 74, 134, 232, false},
		{"fff", 0, 0, 0, true},
		{"zzzzzz", 0, 0, 0, true},
	}
	for _, tc := range tests {
		r, g, b, err := hexToRGB(tc.hex)
		if tc.wantErr {
			if err == nil {
				t.Errorf("hexToRGB(%q) expected error", tc.hex)
			}
			continue
		}
		if err != nil {
			t.Errorf("hexToRGB(%q) failed: %v", tc.hex, err)
			continue
		}
		if r != tc.r || g != tc.g || b != tc.b {
			t.Errorf("hexToRGB(%q) = (%d,%d,%d), want (%d,%d,%d)", tc.hex, r, g, b, tc.r, tc.g, tc.b)
		}
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/jpeg", ".jpg"},
		{"image/png", ".png"},
		{"image/gif", ".gif"},
		{"video/mp4", ".mp4"},
		{"audio/ogg", ".ogg"},
		{"application/octet-stream", ""},
	}
	for _, tc := range tests {
		if got := extensionFor(tc.mime); got != tc.want {
			t.Errorf("extensionFor(%q) = %q, want %q", tc.mime, got, tc.want)
		}
	}
}
