package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

// FeedRepository 是 repository.FeedRepository 的 testify mock。
type FeedRepository struct {
	mock.Mock
}

func (m *FeedRepository) Publish(ctx context.Context, event domain.ChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *FeedRepository) Subscribe(ctx context.Context, roomCode string) (repository.FeedSubscription, error) {
	args := m.Called(ctx, roomCode)
	if sub, ok := args.Get(0).(repository.FeedSubscription); ok {
		return sub, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FeedRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

// FeedSubscription 是 repository.FeedSubscription 的 testify mock。
type FeedSubscription struct {
	mock.Mock
}

func (m *FeedSubscription) Events() <-chan domain.ChangeEvent {
	args := m.Called()
	if ch, ok := args.Get(0).(<-chan domain.ChangeEvent); ok {
		return ch
	}
	if ch, ok := args.Get(0).(chan domain.ChangeEvent); ok {
		return ch
	}
	return nil
}

func (m *FeedSubscription) Close() error {
	args := m.Called()
	return args.Error(0)
}
