package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection parameters for MinIO or S3.
type MinioConfig struct {
	// Backend is "minio" (default) or "s3". For s3 the endpoint defaults to
	// s3.amazonaws.com.
	Backend string

	// Endpoint is host[:port] without scheme.
	Endpoint string

	AccessKey string
	SecretKey string

	// Bucket is the bucket holding document blobs (default: documents).
	Bucket string

	// Region is the bucket region, required for s3.
	Region string

	// UseSSL enables HTTPS.
	UseSSL bool
}

// MinioStore implements Store on a MinIO or S3 bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg *MinioConfig, log *slog.Logger) (*MinioStore, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = "documents"
	}
	endpoint := cfg.Endpoint
	switch cfg.Backend {
	case "", "minio":
		if endpoint == "" {
			endpoint = "localhost:9000"
		}
	case "s3":
		if endpoint == "" {
			endpoint = "s3.amazonaws.com"
		}
	default:
		return nil, fmt.Errorf("blob: unknown backend %q (valid: minio, s3)", cfg.Backend)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: failed to create client: %w", err)
	}

	s := &MinioStore{client: client, bucket: cfg.Bucket}
	if err := s.ensureBucket(ctx, cfg, log); err != nil {
		return nil, err
	}
	log.Info("blob store initialized",
		slog.String("backend", cfg.Backend),
		slog.String("endpoint", endpoint),
		slog.String("bucket", cfg.Bucket),
	)
	return s, nil
}

// ensureBucket creates the bucket if missing. On S3 a failed create is only
// a warning since credentials are often scoped to an existing bucket.
func (s *MinioStore) ensureBucket(ctx context.Context, cfg *MinioConfig, log *slog.Logger) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return unavailable("check bucket", err)
	}
	if exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: cfg.Region})
	if err != nil {
		if cfg.Backend == "s3" {
			log.Warn("blob: could not create bucket, assuming it exists",
				slog.String("bucket", s.bucket), slog.Any("error", err))
			return nil
		}
		return unavailable("create bucket", err)
	}
	return nil
}

// Put uploads data under key.
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return unavailable("put", err)
	}
	return nil
}

// Get downloads the blob under key.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.getError(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.getError(key, err)
	}
	return data, nil
}

func (s *MinioStore) getError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return unavailable("get", err)
}

// Delete removes the blob under key. S3 semantics make a missing key a
// successful delete.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
