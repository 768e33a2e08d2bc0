package profile

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockStore) Upsert(ctx context.Context, userID uuid.UUID, fields Fields) error {
	args := m.Called(ctx, userID, fields)
	return args.Error(0)
}

func (m *MockStore) CreateIfAbsent(ctx context.Context, userID uuid.UUID, seed Seed) error {
	args := m.Called(ctx, userID, seed)
	return args.Error(0)
}
