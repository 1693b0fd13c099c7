package kvstore

import (
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu   sync.Mutex
	data map[string]Value
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]Value)}
}

func (m *Memory) Get(key string) (Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key string, v Value) error {
	return m.Commit(NewBatch().Set(key, v))
}

func (m *Memory) Remove(key string) error {
	return m.Commit(NewBatch().Remove(key))
}

func (m *Memory) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) ScanPrefix(prefix string) (map[string]Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Value)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) Commit(b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	Snapshot(m.data).Apply(b)
	return nil
}
