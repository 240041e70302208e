package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestMediaKey(t *testing.T) {
	data := []byte("fake image bytes")
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	key, hash := MediaKey(data, "https://cdn.realtor.ca/listing/26001716_1.png?w=1260")
	if hash != digest {
		t.Fatalf("hash = %s, want %s", hash, digest)
	}
	want := "media/" + digest[:2] + "/" + digest + ".png"
	if key != want {
		t.Fatalf("key = %s, want %s", key, want)
	}

	// Same bytes yield the same key no matter the source filename.
	key2, _ := MediaKey(data, "https://cdn.realtor.ca/listing/other_9.png")
	if key2 != key {
		t.Fatalf("content addressing broke: %s vs %s", key2, key)
	}
}

func TestExtFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.realtor.ca/listing/photo.JPG", ".jpg"},
		{"https://cdn.realtor.ca/listing/photo.jpeg", ".jpeg"},
		{"https://cdn.realtor.ca/listing/photo.webp", ".webp"},
		{"https://cdn.realtor.ca/listing/photo.png?w=400", ".png"},
		{"https://cdn.realtor.ca/listing/photo.tiff", ".jpg"},
		{"https://cdn.realtor.ca/listing/photo", ".jpg"},
		{"://missing-scheme", ".jpg"},
	}
	for _, tc := range cases {
		if got := extFromURL(tc.url); got != tc.want {
			t.Errorf("extFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestPublicURL(t *testing.T) {
	key := "media/ab/abcdef.jpg"

	plain := &S3Uploader{cfg: S3Config{Bucket: "we-media", Region: "us-east-2"}}
	if got := plain.PublicURL(key); got != "https://we-media.s3.us-east-2.amazonaws.com/media/ab/abcdef.jpg" {
		t.Fatalf("aws url = %s", got)
	}

	spaces := &S3Uploader{cfg: S3Config{Bucket: "we-media", Endpoint: "https://nyc3.digitaloceanspaces.com"}}
	if got := spaces.PublicURL(key); got != "https://we-media.nyc3.digitaloceanspaces.com/media/ab/abcdef.jpg" {
		t.Fatalf("spaces url = %s", got)
	}

	cdn := &S3Uploader{cfg: S3Config{Bucket: "we-media", PublicURL: "https://media.welistings.ca/"}}
	if got := cdn.PublicURL(key); got != "https://media.welistings.ca/media/ab/abcdef.jpg" {
		t.Fatalf("cdn url = %s", got)
	}
}

func TestNewUploaderUnconfigured(t *testing.T) {
	up, err := NewUploader(context.Background(), S3Config{})
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}
	if up.Configured() {
		t.Fatal("empty config should fall back to the no-op uploader")
	}
	if err := up.Upload(context.Background(), "k", strings.NewReader("x"), "image/jpeg"); err != nil {
		t.Fatalf("noop upload errored: %v", err)
	}
	if up.PublicURL("k") != "" {
		t.Fatal("noop uploader should have no public URL")
	}
}
