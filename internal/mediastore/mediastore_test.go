package mediastore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cubby/internal/config"
	"cubby/internal/services"
)

func TestCleanLocator(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "uploads/a.mp4", want: "uploads/a.mp4"},
		{in: "/uploads//b.mp4", want: "uploads/b.mp4"},
		{in: "uploads/./c.mp4", want: "uploads/c.mp4"},
		{in: "../etc/passwd", wantErr: true},
		{in: "uploads/../../x", wantErr: true},
		{in: "  ", wantErr: true},
		{in: "/", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanLocator(tt.in)
		if tt.wantErr {
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("CleanLocator(%q) expected validation error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("CleanLocator(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestLocalRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(src, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Upload(ctx, src, "thumbnails/ws/asset.jpg", "image/jpeg"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "thumbnails", "ws", "asset.jpg")); err != nil {
		t.Fatalf("expected uploaded file: %v", err)
	}

	dest := t.TempDir()
	local, err := store.Download(ctx, "thumbnails/ws/asset.jpg", dest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if local != filepath.Join(dest, "asset.jpg") {
		t.Fatalf("unexpected local path %q", local)
	}
	data, _ := os.ReadFile(local)
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected content %q", data)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestLocalDownloadMissingIsNotFound(t *testing.T) {
	store, _ := NewLocal(t.TempDir())
	_, err := store.Download(context.Background(), "uploads/missing.mp4", t.TempDir())
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(config.Storage{Backend: config.BackendLocal, LocalRoot: t.TempDir()})
	if err != nil || store.Name() != "local" {
		t.Fatalf("expected local store, got %v, %v", store, err)
	}
	store, err = New(config.Storage{Backend: config.BackendS3, Endpoint: "localhost:9000", Bucket: "media", AccessKey: "a", SecretKey: "b", Region: "us-east-1"})
	if err != nil || store.Name() != "s3" {
		t.Fatalf("expected s3 store, got %v, %v", store, err)
	}
	if _, err := New(config.Storage{Backend: "ftp"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type fakeS3 struct {
	mu          sync.Mutex
	puts        map[string][]byte
	contentType map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.puts[r.URL.Path] = body
		f.contentType[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		if r.Method != http.MethodHead {
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
		}
	}
}

func newFakeS3Store(t *testing.T) (*S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{puts: map[string][]byte{}, contentType: map[string]string{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	u, _ := url.Parse(server.URL)
	store, err := NewS3(config.Storage{
		Backend:   config.BackendS3,
		Endpoint:  u.Host,
		Bucket:    "media",
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return store, fake
}

func TestS3DownloadMissingMapsToNotFound(t *testing.T) {
	store, _ := newFakeS3Store(t)
	_, err := store.Download(context.Background(), "uploads/missing.mp4", t.TempDir())
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3UploadSendsContentType(t *testing.T) {
	store, fake := newFakeS3Store(t)
	src := filepath.Join(t.TempDir(), "thumb.jpg")
	if err := os.WriteFile(src, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Upload(context.Background(), src, "thumbnails/ws/a.jpg", ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	body, ok := fake.puts["/media/thumbnails/ws/a.jpg"]
	if !ok {
		t.Fatalf("expected PUT to bucket path, got %v", fake.puts)
	}
	if !strings.Contains(string(body), "jpeg") {
		t.Fatalf("unexpected body %q", body)
	}
	if fake.contentType["/media/thumbnails/ws/a.jpg"] != "image/jpeg" {
		t.Fatalf("unexpected content type %q", fake.contentType["/media/thumbnails/ws/a.jpg"])
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := ContentTypeFor("a/b.MP4"); got != "video/mp4" {
		t.Fatalf("ContentTypeFor = %q", got)
	}
	if got := ContentTypeFor("a/b.bin"); got != "application/octet-stream" {
		t.Fatalf("ContentTypeFor = %q", got)
	}
}
