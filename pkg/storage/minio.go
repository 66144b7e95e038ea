package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage abstracts the S3-compatible backend holding law-text files.
type ObjectStorage interface {
	Fetch(ctx context.Context, bucket, object string) ([]byte, error)
	Store(ctx context.Context, bucket, object string, data []byte, contentType string) error
	EnsureBucket(ctx context.Context, bucket string) error
	Healthy(ctx context.Context) bool
}

type MinioStorage struct {
	Endpoint string
	Client   *minio.Client
}

// Ensure MinioStorage implements the ObjectStorage interface
var _ ObjectStorage = &MinioStorage{}

func NewMinioStorage(endpoint, accessKey, secretKey string, useSSL bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	return &MinioStorage{
		Endpoint: endpoint,
		Client:   client,
	}, nil
}

func (s *MinioStorage) Fetch(ctx context.Context, bucket, object string) ([]byte, error) {
	obj, err := s.Client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, object, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, object, err)
	}

	return data, nil
}

func (s *MinioStorage) Store(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}

	_, err := s.Client.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("failed to put object %s/%s: %w", bucket, object, err)
	}

	return nil
}

func (s *MinioStorage) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.Client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	return nil
}

func (s *MinioStorage) Healthy(ctx context.Context) bool {
	_, err := s.Client.ListBuckets(ctx)
	return err == nil
}
