package mediastore

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"cubby/internal/config"
	"cubby/internal/services"
)

// S3 stores objects in a bucket on an S3 compatible endpoint.
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 connects a minio client using static credentials.
func NewS3(cfg config.Storage) (*S3, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "mediastore", "s3", "endpoint and bucket are required", nil)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "mediastore", "s3", "create client", err)
	}
	return &S3{client: client, bucket: strings.TrimSpace(cfg.Bucket)}, nil
}

func (s *S3) Name() string { return "s3" }

// Download fetches the object into destDir.
func (s *S3) Download(ctx context.Context, locator, destDir string) (string, error) {
	key, err := CleanLocator(locator)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(destDir, path.Base(key))
	if err := s.client.FGetObject(ctx, s.bucket, key, dst, minio.GetObjectOptions{}); err != nil {
		return "", classifyS3Error("download", key, err)
	}
	return dst, nil
}

// Upload puts localPath at locator.
func (s *S3) Upload(ctx context.Context, localPath, locator, contentType string) error {
	key, err := CleanLocator(locator)
	if err != nil {
		return err
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = ContentTypeFor(key)
	}
	if _, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return classifyS3Error("upload", key, err)
	}
	return nil
}

// Ping checks that the bucket exists.
func (s *S3) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classifyS3Error("ping", s.bucket, err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "mediastore", "ping", fmt.Sprintf("bucket %q does not exist", s.bucket), nil)
	}
	return nil
}

func classifyS3Error(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "mediastore", op, fmt.Sprintf("object %q missing", key), err)
	case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "mediastore", op, "access denied", err)
	default:
		return services.Wrap(services.ErrTransient, "mediastore", op, fmt.Sprintf("object %q", key), err)
	}
}
