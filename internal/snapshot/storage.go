// Package snapshot provides the durable backends that hold encoded cart and
// wishlist snapshots: memory, local files, Redis and PostgreSQL, plus a
// resilience wrapper for the remote ones.
package snapshot

import (
	"context"
	"sync"

	"github.com/abgdnv/storefront/internal/commerce"
	sferrors "github.com/abgdnv/storefront/internal/errors"
)

var (
	_ commerce.Storage = (*MemoryStorage)(nil)
	_ commerce.Storage = (*FileStorage)(nil)
	_ commerce.Storage = (*RedisStorage)(nil)
	_ commerce.Storage = (*PgStorage)(nil)
	_ commerce.Storage = (*ResilientStorage)(nil)
)

// MemoryStorage keeps snapshots for the lifetime of the process.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	if !ok {
		return nil, sferrors.ErrSnapshotNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStorage) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}
