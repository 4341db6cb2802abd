package audit

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]LoginRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]LoginRecord)}
}

func (m *MemoryStore) Touch(_ context.Context, l Login) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[l.CobaltUserID]
	if !ok {
		rec = LoginRecord{
			CobaltUserID:   l.CobaltUserID,
			CobaltUsername: l.CobaltUsername,
		}
	}
	rec.AdminUserID = l.AdminUserID
	rec.LastLogin = l.At
	rec.LoginCount++

	m.records[l.CobaltUserID] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, cobaltUserID string) (*LoginRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[cobaltUserID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}
