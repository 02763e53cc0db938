package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MockStorage is an in-memory FileStorage for testing
type MockStorage struct {
	files map[string][]byte
	mu    sync.RWMutex

	// SaveErr, when set, is returned by every Save call
	SaveErr error
}

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files: make(map[string][]byte),
	}
}

func (m *MockStorage) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	m.mu.Lock()
	m.files[key] = content
	m.mu.Unlock()
	return nil
}

func (m *MockStorage) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	m.mu.RLock()
	content, exists := m.files[key]
	m.mu.RUnlock()

	if !exists {
		return nil, 0, ErrFileMissing
	}
	return io.NopCloser(bytes.NewReader(content)), int64(len(content)), nil
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.files, key)
	m.mu.Unlock()
	return nil
}

// Put stores content directly (for test setup)
func (m *MockStorage) Put(key string, content []byte) {
	m.mu.Lock()
	m.files[key] = content
	m.mu.Unlock()
}

// Files returns a copy of everything stored
func (m *MockStorage) Files() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		files[k] = v
	}
	return files
}

// FileExists checks if a file exists in mock storage
func (m *MockStorage) FileExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[key]
	return exists
}

// Clear removes all files from mock storage
func (m *MockStorage) Clear() {
	m.mu.Lock()
	m.files = make(map[string][]byte)
	m.mu.Unlock()
}

// ErrMockSave is a ready-made failure for SaveErr
var ErrMockSave = errors.New("mock storage: save failed")
