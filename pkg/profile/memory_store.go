package profile

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]Record),
	}
}

// Get returns a copy of the stored record.
func (m *MemoryStore) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	m.mu.RLock()
	rec, ok := m.records[userID]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Upsert stores fields, creating the record if needed.
func (m *MemoryStore) Upsert(ctx context.Context, userID uuid.UUID, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[userID]
	rec.ID = userID
	rec.Phone = fields.Phone
	rec.Birthdate = fields.Birthdate
	rec.Country = fields.Country
	rec.RelationshipToBaby = fields.RelationshipToBaby
	m.records[userID] = rec
	return nil
}

// CreateIfAbsent returns ErrAlreadyExists when a record is present.
func (m *MemoryStore) CreateIfAbsent(ctx context.Context, userID uuid.UUID, seed Seed) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[userID]; ok {
		return ErrAlreadyExists
	}
	m.records[userID] = Record{
		ID:       userID,
		FullName: seed.FullName,
		Email:    seed.Email,
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
