package workers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"we_listings/models"
	"we_listings/storage"
)

type recordingUploader struct {
	keys         []string
	contentTypes []string
	payloads     [][]byte
}

func (u *recordingUploader) Configured() bool { return true }

func (u *recordingUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	u.keys = append(u.keys, key)
	u.contentTypes = append(u.contentTypes, contentType)
	u.payloads = append(u.payloads, payload)
	return nil
}

func (u *recordingUploader) PublicURL(key string) string { return "" }

func TestProcessDownloadsAndUploads(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 2048)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photos/26001716_1.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer srv.Close()

	rec := &recordingUploader{}
	worker := &MediaWorker{httpClient: srv.Client(), uploader: rec}

	m := &models.Media{ID: 1, OriginalURL: srv.URL + "/photos/26001716_1.png"}
	result, err := worker.Process(context.Background(), m)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if result.Size != 2048 {
		t.Fatalf("expected size 2048, got %d", result.Size)
	}
	if len(result.ContentHash) != 64 {
		t.Fatalf("expected sha256 hex digest, got %q", result.ContentHash)
	}
	wantKey := "media/" + result.ContentHash[:2] + "/" + result.ContentHash + ".png"
	if result.S3Key != wantKey {
		t.Fatalf("expected key %s, got %s", wantKey, result.S3Key)
	}
	if result.ContentType != "image/png" {
		t.Fatalf("expected content type image/png, got %s", result.ContentType)
	}

	if len(rec.keys) != 1 || rec.keys[0] != wantKey {
		t.Fatalf("expected one upload under %s, got %v", wantKey, rec.keys)
	}
	if !bytes.Equal(rec.payloads[0], payload) {
		t.Fatal("uploaded payload does not match download")
	}
}

func TestProcessDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	worker := &MediaWorker{httpClient: srv.Client(), uploader: storage.NoOpUploader{}}
	_, err := worker.Process(context.Background(), &models.Media{OriginalURL: srv.URL + "/missing.jpg"})
	if err == nil {
		t.Fatal("expected error for missing image")
	}
	if !strings.Contains(err.Error(), "download status: 404") {
		t.Fatalf("unexpected error: %v", err)
	}
}
