package objectstorage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	// UploadPartSize is the multipart part size for export uploads
	// (spec.md §6).
	UploadPartSize = 5 * 1024 * 1024
	// UploadConcurrency is the multipart concurrency for export uploads
	// (spec.md §6).
	UploadConcurrency = 4

	// DefaultUploadTTL is the presigned PUT URL lifetime for source file
	// uploads (spec.md §6).
	DefaultUploadTTL = time.Hour
	// DefaultDownloadTTL is the presigned GET URL lifetime for result
	// downloads (spec.md §6).
	DefaultDownloadTTL = 24 * time.Hour
)

// Store wraps S3 for source upload, export upload, and download access.
type Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
}

// NewStore creates a Store against the given bucket.
func NewStore(client *s3.Client, bucket string) *Store {
	return &Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = UploadPartSize
			u.Concurrency = UploadConcurrency
		}),
		bucket: bucket,
	}
}

// PresignUpload returns a presigned PUT URL for a new source file.
func (s *Store) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(DefaultUploadTTL))
	if err != nil {
		return "", fmt.Errorf("objectstorage: presign upload for %s: %w", key, err)
	}
	return req.URL, nil
}

// PresignDownload returns a presigned GET URL for an export object.
func (s *Store) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(DefaultDownloadTTL))
	if err != nil {
		return "", fmt.Errorf("objectstorage: presign download for %s: %w", key, err)
	}
	return req.URL, nil
}

// Open streams a source object for reading (enrichment's input).
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstorage: open %s: %w", key, err)
	}
	return out.Body, nil
}

// UploadExport multipart-uploads an export object, 5 MiB parts at
// concurrency 4, with the content type export writers use (spec.md
// §4.8 step 7).
func (s *Store) UploadExport(ctx context.Context, key, contentType string, r io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        r,
	})
	if err != nil {
		return fmt.Errorf("objectstorage: upload export %s: %w", key, err)
	}
	return nil
}
