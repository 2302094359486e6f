package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fetanpay/verification-service/internal/domain"
)

// maxReceiptBytes bounds a single uploaded receipt file (8 MiB).
const maxReceiptBytes = 8 << 20

// allowedMimeTypes are the receipt formats the dashboards accept.
var allowedMimeTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// FilesystemReceiptStoreConfig configures the local receipt store
type FilesystemReceiptStoreConfig struct {
	// BasePath is the directory receipts are written under
	BasePath string
	// PublicBaseURL is prepended to stored paths to form servable URLs
	// (e.g. "https://assets.fetanpay.et/receipts")
	PublicBaseURL string
}

// FilesystemReceiptStore persists uploaded receipt files on local disk and
// serves them through a static file host. Object storage deployments
// implement the same port against S3-compatible APIs.
type FilesystemReceiptStore struct {
	config FilesystemReceiptStoreConfig
	logger *zap.Logger
}

// NewFilesystemReceiptStore creates a new filesystem receipt store
func NewFilesystemReceiptStore(cfg FilesystemReceiptStoreConfig, logger *zap.Logger) (*FilesystemReceiptStore, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("receipt store base path is required")
	}
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("create receipt store directory: %w", err)
	}

	return &FilesystemReceiptStore{
		config: cfg,
		logger: logger,
	}, nil
}

// Save writes the uploaded file under {base}/{payment_id}/{random}{ext}
// and returns the public URL. The payment ID segments the tree so one
// payment's receipts never collide with another's.
func (s *FilesystemReceiptStore) Save(ctx context.Context, paymentID, filename, mimeType string, r io.Reader) (string, error) {
	ext, ok := allowedMimeTypes[normalizeMimeType(mimeType)]
	if !ok {
		return "", domain.NewDomainError(domain.ErrorCodeValidationFailed, "unsupported receipt file type").
			WithDetail("mime_type", mimeType)
	}

	dir := filepath.Join(s.config.BasePath, paymentID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create receipt directory: %w", err)
	}

	name := uuid.New().String() + ext
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return "", fmt.Errorf("create receipt file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, maxReceiptBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write receipt file: %w", err)
	}
	if written > maxReceiptBytes {
		os.Remove(path)
		return "", domain.NewDomainError(domain.ErrorCodeValidationFailed, "receipt file exceeds size limit").
			WithDetail("filename", filename)
	}

	url := strings.TrimRight(s.config.PublicBaseURL, "/") + "/" + paymentID + "/" + name

	s.logger.Info("Receipt file stored",
		zap.String("payment_id", paymentID),
		zap.String("path", path),
		zap.Int64("bytes", written),
	)

	return url, nil
}

// HealthCheck verifies the receipt directory still exists and is a
// directory. Mounted volumes disappear; better to fail the probe than
// the first upload.
func (s *FilesystemReceiptStore) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.config.BasePath)
	if err != nil {
		return fmt.Errorf("receipt store base path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("receipt store base path %q is not a directory", s.config.BasePath)
	}
	return nil
}

func normalizeMimeType(mimeType string) string {
	parsed, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return parsed
}
