package attendance

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process backend for dev and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	registered map[string]struct{}
	records    []Record
	index      map[[2]string]struct{}
}

// NewMemoryStore creates an empty store seeded with identifiers.
func NewMemoryStore(identifiers ...string) *MemoryStore {
	m := &MemoryStore{
		registered: make(map[string]struct{}),
		index:      make(map[[2]string]struct{}),
	}
	_ = m.Register(context.Background(), identifiers...)
	return m
}

func (m *MemoryStore) Register(_ context.Context, identifiers ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range identifiers {
		if id = NormalizeIdentifier(id); id != "" {
			m.registered[id] = struct{}{}
		}
	}
	return nil
}

func (m *MemoryStore) IsRegistered(_ context.Context, identifier string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.registered[identifier]
	return ok, nil
}

func (m *MemoryStore) Exists(_ context.Context, identifier, session string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.index[[2]string{identifier, session}]
	return ok, nil
}

func (m *MemoryStore) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{rec.Identifier, rec.Session}
	if _, ok := m.index[key]; ok {
		return ErrAlreadyRecorded
	}
	m.index[key] = struct{}{}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) CountsBySession(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, rec := range m.records {
		counts[rec.Session]++
	}
	return counts, nil
}

func (m *MemoryStore) List(_ context.Context, filter ListFilter) ([]Record, error) {
	m.mu.RLock()
	var res []Record
	for _, rec := range m.records {
		if filter.Session == "" || rec.Session == filter.Session {
			res = append(res, rec)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	if limit := normalizeLimit(filter.Limit); len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
