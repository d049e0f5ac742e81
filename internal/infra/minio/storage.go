package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage fetches videos addressed as s3://bucket/key from a MinIO or
// S3-compatible endpoint.
type Storage struct {
	client *miniogo.Client
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{client: client}, nil
}

// ParseObjectURL splits s3://bucket/key into its bucket and key.
func ParseObjectURL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse object url: %w", err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("object url %q: scheme must be s3", rawURL)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("object url %q: want s3://bucket/key", rawURL)
	}
	return bucket, key, nil
}

func (s *Storage) DownloadVideo(ctx context.Context, bucket, objectKey, destPath string) error {
	return s.client.FGetObject(ctx, bucket, objectKey, destPath, miniogo.GetObjectOptions{})
}

// Fetch implements port.VideoFetcher for s3:// URLs.
func (s *Storage) Fetch(ctx context.Context, rawURL string, destPath string) error {
	bucket, key, err := ParseObjectURL(rawURL)
	if err != nil {
		return err
	}
	if err := s.DownloadVideo(ctx, bucket, key, destPath); err != nil {
		return fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return nil
}
