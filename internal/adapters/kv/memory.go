package kv

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithQuota limits the total size of all values in bytes. Zero means unlimited.
func WithQuota(bytes int) MemoryOption {
	return func(m *Memory) {
		if bytes > 0 {
			m.quota = bytes
		}
	}
}

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	data  map[string][]byte
	used  int
	quota int
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{data: make(map[string][]byte)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := m.used - len(m.data[key]) + len(value)
	if m.quota > 0 && used > m.quota {
		return fmt.Errorf("%w: %s needs %d of %d bytes", ErrQuota, key, used, m.quota)
	}
	m.data[key] = append([]byte(nil), value...)
	m.used = used
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used -= len(m.data[key])
	delete(m.data, key)
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
