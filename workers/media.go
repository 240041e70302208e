package workers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"we_listings/models"
	"we_listings/storage"
)

// 50 MB is generous for listing photos; anything bigger is truncated rather
// than ballooning memory.
const maxMediaBytes = 50 * 1024 * 1024

// MediaWorker mirrors queued listing images into the S3 bucket. Objects are
// keyed by content hash, so the same photo reused across relistings is stored
// once.
type MediaWorker struct {
	store      *storage.PostgresStore
	httpClient *http.Client
	uploader   storage.Uploader
}

func NewMediaWorker(store *storage.PostgresStore, uploader storage.Uploader) *MediaWorker {
	return &MediaWorker{
		store: store,
		// Longer timeout than the page clients; photo CDNs can be slow.
		httpClient: &http.Client{Timeout: 60 * time.Second},
		uploader:   uploader,
	}
}

// MediaResult describes one completed mirror.
type MediaResult struct {
	S3Key       string
	ContentHash string
	ContentType string
	Size        int64
}

// Process downloads one image, hashes it, and uploads it under the
// content-addressed key.
func (w *MediaWorker) Process(ctx context.Context, m *models.Media) (*MediaResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", m.OriginalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	key, hash := storage.MediaKey(data, m.OriginalURL)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	return &MediaResult{
		S3Key:       key,
		ContentHash: hash,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Run polls the media queue until the context is cancelled.
func (w *MediaWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Media worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *MediaWorker) processBatch(ctx context.Context, batchSize int) {
	media, err := w.store.PendingMedia(ctx, batchSize)
	if err != nil {
		log.Printf("Media worker: query error: %v", err)
		return
	}

	if len(media) == 0 {
		return
	}

	log.Printf("Media worker: processing %d items", len(media))

	var uploaded, failed int
	for i := range media {
		m := &media[i]

		result, err := w.Process(ctx, m)
		if err != nil {
			log.Printf("Media worker: failed %s: %v", m.OriginalURL, err)
			if err := w.store.MarkMediaFailed(ctx, m.ID); err != nil {
				log.Printf("Media worker: failed to record failure %d: %v", m.ID, err)
			}
			failed++
			continue
		}

		if err := w.store.MarkMediaUploaded(ctx, m.ID, result.S3Key, result.ContentHash, result.ContentType, result.Size); err != nil {
			log.Printf("Media worker: failed to update %d: %v", m.ID, err)
			failed++
			continue
		}

		uploaded++
		log.Printf("Media worker: uploaded %s -> %s (%d bytes)", m.OriginalURL, result.S3Key, result.Size)

		// Rate limit between downloads
		time.Sleep(200 * time.Millisecond)
	}

	if uploaded > 0 || failed > 0 {
		log.Printf("Media worker: uploaded %d, failed %d", uploaded, failed)
	}
}
