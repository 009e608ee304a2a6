package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// ChatRepository 是 repository.ChatRepository 的 testify mock。
type ChatRepository struct {
	mock.Mock
}

func (m *ChatRepository) Append(ctx context.Context, message *domain.ChatMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *ChatRepository) ListByRoom(ctx context.Context, roomCode string, limit int) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, roomCode, limit)
	if msgs, ok := args.Get(0).([]domain.ChatMessage); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ChatRepository) DetachAuthor(ctx context.Context, playerID uint) error {
	args := m.Called(ctx, playerID)
	return args.Error(0)
}

func (m *ChatRepository) DeleteByRoom(ctx context.Context, roomCode string) error {
	args := m.Called(ctx, roomCode)
	return args.Error(0)
}
