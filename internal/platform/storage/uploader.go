package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/quadro-commerce/api/internal/platform/config"
)

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ErrUnsupportedContentType is returned for uploads outside the image allowlist.
var ErrUnsupportedContentType = errors.New("storage: unsupported content type")

// Uploader stores tenant-scoped objects in a bucket and returns public URLs.
type Uploader struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
}

// NewUploader builds an Uploader for the configured bucket.
func NewUploader(ctx context.Context, cfg config.StorageConfig) (*Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = "https://storage.googleapis.com/" + cfg.Bucket
	}
	return &Uploader{client: client, bucket: cfg.Bucket, publicBaseURL: base}, nil
}

// Upload writes the object under <tenantID>/<folder>/<uuid><ext> and returns
// its public URL.
func (u *Uploader) Upload(ctx context.Context, tenantID, folder, contentType string, body io.Reader) (string, error) {
	if u == nil || u.client == nil {
		return "", errors.New("storage: uploader not initialised")
	}
	ext, ok := allowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedContentType
	}

	objectName := path.Join(tenantID, folder, uuid.NewString()+ext)
	writer := u.client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(writer, body); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("storage: write object %s: %w", objectName, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("storage: finalise object %s: %w", objectName, err)
	}
	return u.publicBaseURL + "/" + objectName, nil
}

// Delete removes an object previously uploaded under the tenant prefix.
func (u *Uploader) Delete(ctx context.Context, objectName string) error {
	if u == nil || u.client == nil {
		return errors.New("storage: uploader not initialised")
	}
	if err := u.client.Bucket(u.bucket).Object(objectName).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("storage: delete object %s: %w", objectName, err)
	}
	return nil
}

// Close releases the storage client.
func (u *Uploader) Close() error {
	if u == nil || u.client == nil {
		return nil
	}
	return u.client.Close()
}
