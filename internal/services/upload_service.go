package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const defaultMaxUploadSize = 5 << 20

var (
	// ErrUploadInvalidInput signals the caller provided invalid data.
	ErrUploadInvalidInput = errors.New("upload: invalid input")
	// ErrUploadTooLarge rejects payloads over the configured limit.
	ErrUploadTooLarge = errors.New("upload: payload too large")
)

// Upload folders recognised by the API.
const (
	UploadFolderProducts = "products"
	UploadFolderLogos    = "logos"
)

// UploadImageCommand carries one image upload.
type UploadImageCommand struct {
	TenantID    string
	Folder      string
	ContentType string
	Body        io.Reader
	Size        int64
}

// ObjectStore abstracts the bucket backend.
type ObjectStore interface {
	Upload(ctx context.Context, tenantID, folder, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, objectName string) error
}

// UploadServiceDeps bundles collaborators required to construct the upload service.
type UploadServiceDeps struct {
	Store         ObjectStore
	MaxUploadSize int64
}

type uploadService struct {
	store   ObjectStore
	maxSize int64
}

// NewUploadService wires dependencies into a concrete UploadService implementation.
func NewUploadService(deps UploadServiceDeps) (UploadService, error) {
	if deps.Store == nil {
		return nil, errors.New("upload service: object store is required")
	}
	maxSize := deps.MaxUploadSize
	if maxSize <= 0 {
		maxSize = defaultMaxUploadSize
	}
	return &uploadService{store: deps.Store, maxSize: maxSize}, nil
}

func (s *uploadService) UploadImage(ctx context.Context, cmd UploadImageCommand) (string, error) {
	if strings.TrimSpace(cmd.TenantID) == "" {
		return "", fmt.Errorf("%w: tenant id is required", ErrUploadInvalidInput)
	}
	folder := strings.TrimSpace(cmd.Folder)
	if folder != UploadFolderProducts && folder != UploadFolderLogos {
		return "", fmt.Errorf("%w: unknown folder %q", ErrUploadInvalidInput, folder)
	}
	if cmd.Body == nil {
		return "", fmt.Errorf("%w: body is required", ErrUploadInvalidInput)
	}
	if cmd.Size > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds limit %d", ErrUploadTooLarge, cmd.Size, s.maxSize)
	}

	// LimitReader guards against callers that do not know the payload size
	// up front; one extra byte distinguishes at-limit from over-limit.
	limited := io.LimitReader(cmd.Body, s.maxSize+1)
	counting := &countingReader{r: limited}
	url, err := s.store.Upload(ctx, cmd.TenantID, folder, cmd.ContentType, counting)
	if err != nil {
		return "", err
	}
	if counting.n > s.maxSize {
		if idx := strings.Index(url, cmd.TenantID); idx >= 0 {
			_ = s.store.Delete(ctx, url[idx:])
		}
		return "", fmt.Errorf("%w: limit %d", ErrUploadTooLarge, s.maxSize)
	}
	return url, nil
}

func (s *uploadService) DeleteImage(ctx context.Context, tenantID, objectName string) error {
	objectName = strings.TrimSpace(objectName)
	if objectName == "" {
		return fmt.Errorf("%w: object name is required", ErrUploadInvalidInput)
	}
	// Objects are namespaced by tenant; refuse cross-tenant deletes.
	if !strings.HasPrefix(objectName, tenantID+"/") {
		return fmt.Errorf("%w: object outside tenant namespace", ErrUploadInvalidInput)
	}
	return s.store.Delete(ctx, objectName)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
