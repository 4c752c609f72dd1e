package storage

import (
	"sync"

	"kynor-backend/internal/conversation"
)

type MemoryStorage struct {
	set conversation.Set
	mu  sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) Backup() error {
	return nil
}

func (m *MemoryStorage) Snapshot() conversation.Set {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.set
}

func (m *MemoryStorage) Update(fn func(conversation.Set) conversation.Set) (conversation.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set = fn(m.set)
	return m.set, nil
}
