package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

const notebookExtension = ".ipynb"

// MinioFetcher reads notebooks stored as <documentVersionId>.ipynb in a bucket.
type MinioFetcher struct {
	client *minio.Client
	bucket string
}

// NewMinioFetcher connects to an S3-compatible endpoint
func NewMinioFetcher(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioFetcher, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	log.Info().Str("endpoint", endpoint).Str("bucket", bucket).Msg("MinIO fetcher initialized")

	return &MinioFetcher{client: client, bucket: bucket}, nil
}

func (f *MinioFetcher) Fetch(ctx context.Context, documentVersionID string) ([]byte, error) {
	objectName := documentVersionID + notebookExtension

	obj, err := f.client.GetObject(ctx, f.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, f.wrapError(objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, f.wrapError(objectName, err)
	}

	return data, nil
}

func (f *MinioFetcher) wrapError(objectName string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("object %s/%s: %w", f.bucket, objectName, plagiarism.ErrNotFound)
	}
	return fmt.Errorf("failed to read object %s/%s: %w", f.bucket, objectName, err)
}
