package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps attachments under a directory on disk
type LocalStorage struct {
	root string
}

// NewLocalStorage creates root if needed
func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if full != s.root && !strings.HasPrefix(full, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("key %q escapes upload directory", key)
	}
	return full, nil
}

// Save writes r to the file for key, replacing any previous content
func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (err error) {
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

// Open opens the file for key
func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, ErrFileMissing
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return f, info.Size(), nil
}

// Delete removes the file for key. Missing files are not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
