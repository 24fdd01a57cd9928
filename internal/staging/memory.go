package staging

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu     sync.RWMutex
	orders map[int64]OrderInProgress
	drafts map[int64]ProductDraft
}

// NewMemoryStore keeps staging records in process memory.
func NewMemoryStore() Store {
	return &memoryStore{
		orders: make(map[int64]OrderInProgress),
		drafts: make(map[int64]ProductDraft),
	}
}

func (m *memoryStore) SaveOrder(_ context.Context, chatID int64, o OrderInProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[chatID] = o
	return nil
}

func (m *memoryStore) LoadOrder(_ context.Context, chatID int64) (OrderInProgress, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[chatID]
	return o, ok, nil
}

func (m *memoryStore) DropOrder(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, chatID)
	return nil
}

func (m *memoryStore) SaveDraft(_ context.Context, chatID int64, d ProductDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[chatID] = d
	return nil
}

func (m *memoryStore) LoadDraft(_ context.Context, chatID int64) (ProductDraft, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[chatID]
	return d, ok, nil
}

func (m *memoryStore) DropDraft(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, chatID)
	return nil
}
