package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStateStore keeps client state in process memory.
type MemoryStateStore struct {
	mu     sync.RWMutex
	values map[string][]byte // sessionID|key -> JSON
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{values: make(map[string][]byte)}
}

func stateKey(sessionID, key string) string {
	return sessionID + "|" + key
}

func (s *MemoryStateStore) Load(ctx context.Context, sessionID, key string, v any) (bool, error) {
	s.mu.RLock()
	data, ok := s.values[stateKey(sessionID, key)]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStateStore) Save(ctx context.Context, sessionID, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values[stateKey(sessionID, key)] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStateStore) Delete(ctx context.Context, sessionID, key string) error {
	s.mu.Lock()
	delete(s.values, stateKey(sessionID, key))
	s.mu.Unlock()
	return nil
}
