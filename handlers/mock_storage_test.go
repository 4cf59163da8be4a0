package handlers

import (
	"context"
	"io"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

type mockStorage struct {
	mu sync.Mutex

	SaveFileFn   func(filename, folder string) (string, error)
	DeleteFileFn func(url string) error

	SavedFolders    []string
	SavedBytes      [][]byte
	DeleteFileCalls []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{DeleteFileCalls: []string{}}
}

func (m *mockStorage) SaveFile(_ context.Context, r io.Reader, filename, folder string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.SavedFolders = append(m.SavedFolders, folder)
	m.SavedBytes = append(m.SavedBytes, data)
	m.mu.Unlock()

	if m.SaveFileFn != nil {
		return m.SaveFileFn(filename, folder)
	}
	return "/" + folder + "/" + uuid.NewString() + filepath.Ext(filename), nil
}

func (m *mockStorage) DeleteFile(_ context.Context, url string) error {
	m.mu.Lock()
	m.DeleteFileCalls = append(m.DeleteFileCalls, url)
	m.mu.Unlock()

	if m.DeleteFileFn != nil {
		return m.DeleteFileFn(url)
	}
	return nil
}
