package filestore

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemFileStore keeps objects in memory. It also records deletes so callers
// can observe cleanup.
type MemFileStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes map[string]int
}

var _ FileStore = (*MemFileStore)(nil)

func NewMemFileStore() *MemFileStore {
	return &MemFileStore{
		objects: map[string][]byte{},
		deletes: map[string]int{},
	}
}

func (m *MemFileStore) UploadFileData(_ context.Context, data []byte, _ string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemFileStore) UploadFile(ctx context.Context, reader io.Reader, contentType, key string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("fail to read upload for %s: %w", key, err)
	}
	return m.UploadFileData(ctx, data, contentType, key)
}

func (m *MemFileStore) GetFileData(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// DeleteFile removes key. Deleting a missing key is not an error, as in S3.
func (m *MemFileStore) DeleteFile(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deletes[key]++
	return nil
}

func (m *MemFileStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Deletes returns how many times key was deleted.
func (m *MemFileStore) Deletes(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes[key]
}
