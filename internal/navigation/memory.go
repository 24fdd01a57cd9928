package navigation

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu    sync.RWMutex
	chats map[int64]*State
}

// NewMemoryStore keeps navigation state in process memory.
func NewMemoryStore() Store {
	return &memoryStore{chats: make(map[int64]*State)}
}

func (m *memoryStore) Load(_ context.Context, chatID int64) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.chats[chatID]
	if !ok {
		return State{}, nil
	}
	return State{Current: st.Current, Path: append([]Step(nil), st.Path...)}, nil
}

func (m *memoryStore) Reset(_ context.Context, chatID int64, step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chatID] = &State{Current: step, Path: []Step{step}}
	return nil
}

func (m *memoryStore) Append(_ context.Context, chatID int64, step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.chats[chatID]
	if !ok {
		st = &State{}
		m.chats[chatID] = st
	}
	st.Current = step
	st.Path = append(st.Path, step)
	if len(st.Path) > maxPath {
		st.Path = append([]Step(nil), st.Path[len(st.Path)-maxPath:]...)
	}
	return nil
}
