package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds configuration for S3-compatible storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional: DO Spaces, R2, MinIO
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string // optional CDN base, overrides the derived URL
}

// Uploader mirrors listing images into object storage.
type Uploader interface {
	Configured() bool
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	PublicURL(key string) string
}

// S3Uploader uploads files to S3-compatible storage.
type S3Uploader struct {
	client *s3.Client
	cfg    S3Config
}

// NewUploader builds an uploader for the given config, or a NoOpUploader when
// no bucket or credentials are set.
func NewUploader(ctx context.Context, cfg S3Config) (Uploader, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" {
		return NoOpUploader{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Uploader{client: client, cfg: cfg}, nil
}

func (u *S3Uploader) Configured() bool { return true }

// Upload puts data under key with the given content type.
func (u *S3Uploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PublicURL returns the public URL for an object key.
func (u *S3Uploader) PublicURL(key string) string {
	if u.cfg.PublicURL != "" {
		return strings.TrimSuffix(u.cfg.PublicURL, "/") + "/" + key
	}
	if u.cfg.Endpoint != "" && strings.Contains(u.cfg.Endpoint, "digitaloceanspaces.com") {
		// DO Spaces: https://{bucket}.{region}.digitaloceanspaces.com/{key}
		host := strings.TrimPrefix(u.cfg.Endpoint, "https://")
		return fmt.Sprintf("https://%s.%s/%s", u.cfg.Bucket, host, key)
	}
	// AWS S3: https://{bucket}.s3.{region}.amazonaws.com/{key}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
}

// NoOpUploader stands in when object storage is unconfigured. Uploads are
// dropped and the source URL stays canonical.
type NoOpUploader struct{}

func (NoOpUploader) Configured() bool { return false }

func (NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	return nil
}

func (NoOpUploader) PublicURL(key string) string { return "" }

// MediaKey returns the content-addressed object key for an image payload and
// the hex digest recorded as its content hash. Keys shard on the first digest
// byte: media/{hh}/{digest}{ext}.
func MediaKey(data []byte, originalURL string) (string, string) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	return fmt.Sprintf("media/%s/%s%s", digest[:2], digest, extFromURL(originalURL)), digest
}

func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".jpg"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".jpg"
}
