package mocks

import (
	"context"
	"sync"

	"github.com/example/technest/internal/infrastructure/store"
)

// MockStateStore wraps an in-memory state store with injectable failures
type MockStateStore struct {
	*store.MemoryStateStore

	mu        sync.Mutex
	SaveErr   error
	LoadErr   error
	SaveCalls []string // keys passed to Save
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{MemoryStateStore: store.NewMemoryStateStore()}
}

func (m *MockStateStore) Load(ctx context.Context, sessionID, key string, v any) (bool, error) {
	m.mu.Lock()
	err := m.LoadErr
	m.mu.Unlock()
	if err != nil {
		return false, err
	}
	return m.MemoryStateStore.Load(ctx, sessionID, key, v)
}

func (m *MockStateStore) Save(ctx context.Context, sessionID, key string, v any) error {
	m.mu.Lock()
	m.SaveCalls = append(m.SaveCalls, key)
	err := m.SaveErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.MemoryStateStore.Save(ctx, sessionID, key, v)
}
