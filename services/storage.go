package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appConfig "github.com/yp-firedoor/firedoor-oa/config"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/utils"
)

// ErrFileMissing means the record references an object that the backend does not have.
var ErrFileMissing = errors.New("file missing from storage")

// FileStorage stores order attachments by key
type FileStorage interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open returns ErrFileMissing when key does not exist.
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}

// InitFileStorage builds the backend selected by STORAGE_BACKEND
func InitFileStorage(ctx context.Context, cfg *appConfig.Config) (FileStorage, error) {
	var (
		storage FileStorage
		err     error
	)

	switch cfg.StorageBackend {
	case "s3":
		storage, err = NewS3Storage(ctx, cfg)
	case "minio":
		storage, err = NewMinIOStorage(ctx, cfg)
	default:
		storage, err = NewLocalStorage(cfg.UploadDir)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("File storage initialized", zap.String("backend", cfg.StorageBackend))
	return storage, nil
}

// ObjectKey builds the storage key orders/{order_id}/{slot}/{upload_id}/{filename}.
// Every call yields a new upload_id, so a replacement never overwrites the
// object the order currently references.
func ObjectKey(orderID uuid.UUID, slot models.FileSlot, filename string) string {
	return path.Join("orders", orderID.String(), string(slot), uuid.NewString(), utils.SanitizeFilename(filename))
}

// OriginalFilename recovers the client filename from a key
func OriginalFilename(key string) string {
	return path.Base(key)
}

// ContentTypeFor guesses a MIME type from the file extension
func ContentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// saveMultipart streams an uploaded form file into storage under key
func saveMultipart(ctx context.Context, storage FileStorage, key string, fileHeader *multipart.FileHeader) error {
	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			zap.L().Warn("failed to close uploaded file", zap.Error(closeErr))
		}
	}()

	return storage.Save(ctx, key, file, fileHeader.Size, ContentTypeFor(fileHeader.Filename))
}
