package media

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Memory keeps objects in process memory and serves them from a fake base URL.
type Memory struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

// NewMemory returns an empty store. An empty baseURL defaults to memory://media.
func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://media"
	}
	return &Memory{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string][]byte)}
}

func (m *Memory) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("media: empty key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return m.baseURL + "/" + key, nil
}

func (m *Memory) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
