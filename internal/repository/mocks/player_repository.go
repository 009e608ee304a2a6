package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// PlayerRepository 是 repository.PlayerRepository 的 testify mock。
type PlayerRepository struct {
	mock.Mock
}

func (m *PlayerRepository) FindByID(ctx context.Context, id uint) (*domain.Player, error) {
	args := m.Called(ctx, id)
	if player, ok := args.Get(0).(*domain.Player); ok {
		return player, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PlayerRepository) FindByRoom(ctx context.Context, roomCode string) ([]domain.Player, error) {
	args := m.Called(ctx, roomCode)
	if players, ok := args.Get(0).([]domain.Player); ok {
		return players, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PlayerRepository) FindByRoomAndName(ctx context.Context, roomCode string, name string) (*domain.Player, error) {
	args := m.Called(ctx, roomCode, name)
	if player, ok := args.Get(0).(*domain.Player); ok {
		return player, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PlayerRepository) Save(ctx context.Context, player *domain.Player) error {
	args := m.Called(ctx, player)
	return args.Error(0)
}

func (m *PlayerRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *PlayerRepository) AssignTurnOrders(ctx context.Context, orders map[uint]int) error {
	args := m.Called(ctx, orders)
	return args.Error(0)
}

func (m *PlayerRepository) CreditBingo(ctx context.Context, roomCode string, playerID uint) (int, error) {
	args := m.Called(ctx, roomCode, playerID)
	return args.Int(0), args.Error(1)
}

func (m *PlayerRepository) CountCompleted(ctx context.Context, roomCode string) (int64, error) {
	args := m.Called(ctx, roomCode)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PlayerRepository) ResetGameState(ctx context.Context, roomCode string) error {
	args := m.Called(ctx, roomCode)
	return args.Error(0)
}

func (m *PlayerRepository) TouchHeartbeat(ctx context.Context, id uint, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *PlayerRepository) FindStale(ctx context.Context, roomCode string, before time.Time) ([]domain.Player, error) {
	args := m.Called(ctx, roomCode, before)
	if players, ok := args.Get(0).([]domain.Player); ok {
		return players, args.Error(1)
	}
	return nil, args.Error(1)
}
