package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// HistoryRepository 是 repository.HistoryRepository 的 testify mock。
type HistoryRepository struct {
	mock.Mock
}

func (m *HistoryRepository) SaveBatch(ctx context.Context, entries []domain.HistoryEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *HistoryRepository) DeleteByRoom(ctx context.Context, roomCode string) error {
	args := m.Called(ctx, roomCode)
	return args.Error(0)
}
