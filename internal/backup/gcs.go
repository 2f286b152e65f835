package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore keeps objects in a Google Cloud Storage bucket
type GCSStore struct {
	client     *storage.Client
	BucketName string
}

// NewGCSStore creates a store for bucket. Without a credentials file the
// application default credentials are used.
func NewGCSStore(ctx context.Context, bucketName, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSStore{client: client, BucketName: bucketName}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Upload(ctx context.Context, localPath, key string) (int64, error) {
	localFile, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open the local file: %s: %w", localPath, err)
	}
	defer localFile.Close()

	writer := s.client.Bucket(s.BucketName).Object(key).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	n, err := io.Copy(writer, localFile)
	if err != nil {
		_ = writer.Close()
		return n, fmt.Errorf("failed to copy local file %s to GCS object %s: %w", localPath, key, err)
	}
	if err := writer.Close(); err != nil {
		return n, fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}
	return n, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.BucketName).Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", s.BucketName, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (s *GCSStore) Download(ctx context.Context, key, localPath string) (int64, error) {
	reader, err := s.client.Bucket(s.BucketName).Object(key).NewReader(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open GCS object %s: %w", key, err)
	}
	defer reader.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer out.Close()

	n, err := io.Copy(out, reader)
	if err != nil {
		return n, fmt.Errorf("failed to download GCS object %s: %w", key, err)
	}
	return n, out.Close()
}
