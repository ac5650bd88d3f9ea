// Package storage provides an S3-compatible object store and pipeline stage
// adapters for reading inputs from and writing outputs to buckets.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store is a client for S3-compatible storage. It is safe for concurrent
// use by the workers of a pipeline run.
type S3Store struct {
	client *minio.Client
}

// NewS3Store connects to the object store using credentials from the
// MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, and MINIO_USE_SSL
// environment variables.
func NewS3Store() (*S3Store, error) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("missing one or more required environment variables: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Println("Successfully connected to MinIO endpoint:", endpoint)
	return &S3Store{client: client}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context, bucket, location string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: location})
}

// GetObject reads one object's bytes.
func (s *S3Store) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// PutObject stores one object.
func (s *S3Store) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(
		ctx,
		bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("failed to store object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Exists reports whether an object is already present.
func (s *S3Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("failed to check for existing object %s/%s: %w", bucket, key, err)
}

// Loader returns a pipeline load function that treats each input path as an
// object key within bucket.
func (s *S3Store) Loader(bucket string) func(ctx context.Context, key string) ([]byte, error) {
	return func(ctx context.Context, key string) ([]byte, error) {
		return s.GetObject(ctx, bucket, key)
	}
}

// Writer returns a pipeline write function that treats each output path as
// an object key within bucket.
func (s *S3Store) Writer(bucket, contentType string) func(ctx context.Context, data []byte, key string) error {
	return func(ctx context.Context, data []byte, key string) error {
		return s.PutObject(ctx, bucket, key, data, contentType)
	}
}

// SkipExisting returns a skip predicate matching items whose output key is
// already present in bucket. Stat errors other than a missing key are logged
// and the item is processed anyway.
func (s *S3Store) SkipExisting(bucket string) func(inpath, outpath string) bool {
	return func(_, outpath string) bool {
		exists, err := s.Exists(context.Background(), bucket, outpath)
		if err != nil {
			log.Printf("Could not check %s/%s, processing anyway: %v", bucket, outpath, err)
			return false
		}
		return exists
	}
}

// SanitizeKey replaces spaces with hyphens and lowercases the string so it
// forms a predictable object key segment.
func SanitizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "-"))
}
