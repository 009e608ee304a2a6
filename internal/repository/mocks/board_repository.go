package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// BoardRepository 是 repository.BoardRepository 的 testify mock。
type BoardRepository struct {
	mock.Mock
}

func (m *BoardRepository) FindByRoomAndPlayer(ctx context.Context, roomCode string, playerID uint) (*domain.Board, error) {
	args := m.Called(ctx, roomCode, playerID)
	if board, ok := args.Get(0).(*domain.Board); ok {
		return board, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BoardRepository) Upsert(ctx context.Context, board *domain.Board) error {
	args := m.Called(ctx, board)
	return args.Error(0)
}

func (m *BoardRepository) DeleteByRoom(ctx context.Context, roomCode string) error {
	args := m.Called(ctx, roomCode)
	return args.Error(0)
}
