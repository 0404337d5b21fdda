package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FilesystemFileStore stores uploads on the local disk and serves them
// from a static path on the API server.
type FilesystemFileStore struct {
	dir        string
	publicPath string
}

// NewFilesystemFileStore creates the upload directory if needed
func NewFilesystemFileStore(dir, publicPath string) (*FilesystemFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FilesystemFileStore{
		dir:        dir,
		publicPath: strings.TrimSuffix(publicPath, "/"),
	}, nil
}

// Save writes content under a unique name and returns its descriptor
func (s *FilesystemFileStore) Save(ctx context.Context, filename string, contentType string, content io.Reader) (*StoredFile, error) {
	stored := uniqueFilename(filename)

	path := filepath.Join(s.dir, stored)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	size, err := io.Copy(f, content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &StoredFile{
		Filename:    stored,
		URL:         s.publicPath + "/" + stored,
		Size:        size,
		ContentType: contentType,
	}, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *FilesystemFileStore) Delete(ctx context.Context, filename string) error {
	// Reject path traversal in stored names.
	if filepath.Base(filename) != filename {
		return fmt.Errorf("invalid filename: %s", filename)
	}

	err := os.Remove(filepath.Join(s.dir, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// uniqueFilename builds a collision-free stored name keeping the
// original extension.
func uniqueFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	return uuid.NewString() + ext
}
