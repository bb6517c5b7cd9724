package dedup

import (
	"context"
	"sync"
)

// Compile-time interface check.
var _ Index = (*Memory)(nil)

// Memory is an in-process Index. Suitable for single-process deployments
// and tests; state does not survive restarts.
type Memory struct {
	mu   sync.RWMutex
	seen map[string]map[string]struct{}
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]map[string]struct{})}
}

func (m *Memory) Seen(_ context.Context, subject, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[subject][hash]
	return ok, nil
}

func (m *Memory) Record(_ context.Context, subject, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(subject, hash)
	return nil
}

func (m *Memory) RecordAll(_ context.Context, subject string, hashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hashes {
		m.record(subject, h)
	}
	return nil
}

func (m *Memory) record(subject, hash string) {
	set, ok := m.seen[subject]
	if !ok {
		set = make(map[string]struct{})
		m.seen[subject] = set
	}
	set[hash] = struct{}{}
}
