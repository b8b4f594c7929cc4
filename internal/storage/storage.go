// Package storage keeps uploaded post images on disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yatube/yatube/pkg/logging"
)

// ErrNotImage is returned for uploads whose content is not an image.
var ErrNotImage = errors.New("uploaded file is not an image")

// uploadDir is the directory under the media root that holds post images.
const uploadDir = "posts"

// ImageStore saves uploaded images and returns their media-relative path.
type ImageStore interface {
	Check(fh *multipart.FileHeader) error
	Save(ctx context.Context, fh *multipart.FileHeader) (string, error)
}

// LocalStore writes images below Root.
type LocalStore struct {
	Root   string
	logger *zap.Logger
}

// NewLocalStore creates the upload directory below root.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, uploadDir), 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &LocalStore{Root: root, logger: logging.WithComponent("storage")}, nil
}

// Check sniffs the upload and returns ErrNotImage unless it is an image.
func (s *LocalStore) Check(fh *multipart.FileHeader) error {
	_, err := sniff(fh)
	return err
}

// Save stores the upload as posts/<uuid><ext> and returns that path.
func (s *LocalStore) Save(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	mt, err := sniff(fh)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := path.Join(uploadDir, uuid.NewString()+mt.Extension())
	dst, err := os.OpenFile(filepath.Join(s.Root, filepath.FromSlash(name)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close image file: %w", err)
	}

	s.logger.Debug("Stored image",
		zap.String("path", name),
		zap.String("mime", mt.String()),
		zap.Int64("size", fh.Size))
	return name, nil
}

func sniff(fh *multipart.FileHeader) (*mimetype.MIME, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("detect upload type: %w", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, ErrNotImage
	}
	return mt, nil
}
