package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds MinIO / S3 connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string // Object key prefix shared by all jobs.
}

// MinioStore is a connected bucket. Each job gets a MinioSink under its own
// prefix.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects and creates the bucket if it does not exist.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Factory opens one sink per job under {prefix}/{docID}.
func (s *MinioStore) Factory() Factory {
	return func(_ context.Context, docID string) (Sink, error) {
		if err := CheckName(docID); err != nil {
			return nil, err
		}
		return &MinioSink{store: s, prefix: path.Join(s.prefix, docID)}, nil
	}
}

// MinioSink writes chapter files as objects.
type MinioSink struct {
	store  *MinioStore
	prefix string
}

// ObjectName is the key a chapter file is stored under.
func (s *MinioSink) ObjectName(name string) string {
	return path.Join(s.prefix, name)
}

func (s *MinioSink) Put(ctx context.Context, name, content string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	return s.put(ctx, s.ObjectName(name), []byte(content), "text/plain; charset=utf-8")
}

// Finish stores the manifest as manifest.json next to the chapters.
func (s *MinioSink) Finish(ctx context.Context, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.put(ctx, s.ObjectName("manifest.json"), b, "application/json")
}

func (s *MinioSink) put(ctx context.Context, object string, data []byte, contentType string) error {
	_, err := s.store.client.PutObject(ctx, s.store.bucket, object,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("put object %s: %w", object, err)
	}
	return nil
}

func (s *MinioSink) Close() error { return nil }
