package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
	"github.com/you-joon/bingoruzzol/internal/repository/mocks"
	"github.com/you-joon/bingoruzzol/internal/service"
)

func newChatServiceWithMocks() (*service.ChatService, *mocks.ChatRepository, *mocks.PlayerRepository, *mocks.FeedRepository) {
	chatRepo := new(mocks.ChatRepository)
	playerRepo := new(mocks.PlayerRepository)
	feedRepo := new(mocks.FeedRepository)
	svc := service.NewChatService(chatRepo, playerRepo, feedRepo)
	return svc, chatRepo, playerRepo, feedRepo
}

func TestChatService_Send_Success(t *testing.T) {
	svc, chatRepo, playerRepo, feedRepo := newChatServiceWithMocks()
	ctx := context.Background()
	player := &domain.Player{ID: 1, RoomCode: "1234", Name: "alice"}

	playerRepo.On("FindByID", ctx, uint(1)).Return(player, nil).Once()
	chatRepo.On("Append", ctx, mock.MatchedBy(func(msg *domain.ChatMessage) bool {
		return msg.RoomCode == "1234" && msg.PlayerID != nil && *msg.PlayerID == uint(1) && msg.Message == "hello"
	})).Return(nil).Once()
	feedRepo.On("Publish", ctx, mock.MatchedBy(func(event domain.ChangeEvent) bool {
		return event.Type == domain.EventChat && event.RoomCode == "1234"
	})).Return(nil).Once()

	msg, err := svc.Send(ctx, "1234", 1, "  hello  ")

	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Message, "首尾空白应被裁剪")
	chatRepo.AssertExpectations(t)
	feedRepo.AssertExpectations(t)
}

func TestChatService_Send_EmptyMessage(t *testing.T) {
	svc, chatRepo, _, _ := newChatServiceWithMocks()

	_, err := svc.Send(context.Background(), "1234", 1, "   ")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrEmptyMessage))
	chatRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestChatService_Send_TruncatesLongMessage(t *testing.T) {
	svc, chatRepo, playerRepo, feedRepo := newChatServiceWithMocks()
	ctx := context.Background()
	player := &domain.Player{ID: 1, RoomCode: "1234", Name: "alice"}
	long := strings.Repeat("a", 600)

	playerRepo.On("FindByID", ctx, uint(1)).Return(player, nil).Once()
	chatRepo.On("Append", ctx, mock.MatchedBy(func(msg *domain.ChatMessage) bool {
		return len(msg.Message) == 500
	})).Return(nil).Once()
	feedRepo.On("Publish", ctx, mock.AnythingOfType("domain.ChangeEvent")).Return(nil).Maybe()

	msg, err := svc.Send(ctx, "1234", 1, long)

	require.NoError(t, err)
	assert.Len(t, msg.Message, 500)
	chatRepo.AssertExpectations(t)
}

func TestChatService_Send_TruncatesOnRuneBoundary(t *testing.T) {
	svc, chatRepo, playerRepo, feedRepo := newChatServiceWithMocks()
	ctx := context.Background()
	player := &domain.Player{ID: 1, RoomCode: "1234", Name: "alice"}
	// 每个汉字 3 字节，600 字节的输入在 500 处正好落在字符中间
	long := strings.Repeat("好", 200)

	playerRepo.On("FindByID", ctx, uint(1)).Return(player, nil).Once()
	chatRepo.On("Append", ctx, mock.AnythingOfType("*domain.ChatMessage")).Return(nil).Once()
	feedRepo.On("Publish", ctx, mock.AnythingOfType("domain.ChangeEvent")).Return(nil).Maybe()

	msg, err := svc.Send(ctx, "1234", 1, long)

	require.NoError(t, err)
	assert.True(t, utf8.ValidString(msg.Message), "截断后必须仍是合法 UTF-8")
	assert.LessOrEqual(t, len(msg.Message), 500)
	assert.Equal(t, 498, len(msg.Message), "截断点应退到最近的 rune 边界")
	chatRepo.AssertExpectations(t)
}

func TestChatService_Send_PlayerNotInRoom(t *testing.T) {
	// 令牌里的玩家已不在该房间: 拒绝，不落库
	svc, chatRepo, playerRepo, _ := newChatServiceWithMocks()
	ctx := context.Background()
	player := &domain.Player{ID: 1, RoomCode: "5678", Name: "alice"}

	playerRepo.On("FindByID", ctx, uint(1)).Return(player, nil).Once()

	_, err := svc.Send(ctx, "1234", 1, "hello")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrPlayerNotFound))
	chatRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestChatService_List_DefaultLimit(t *testing.T) {
	svc, chatRepo, _, _ := newChatServiceWithMocks()
	ctx := context.Background()

	chatRepo.On("ListByRoom", ctx, "1234", 50).Return([]domain.ChatMessage{}, nil).Once()

	msgs, err := svc.List(ctx, "1234", 0)

	require.NoError(t, err)
	assert.Empty(t, msgs)
	chatRepo.AssertExpectations(t)
}

func TestChatService_List_RepositoryError(t *testing.T) {
	svc, chatRepo, _, _ := newChatServiceWithMocks()
	ctx := context.Background()

	chatRepo.On("ListByRoom", ctx, "1234", 20).Return(nil, repository.ErrNotFound).Once()

	_, err := svc.List(ctx, "1234", 20)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInternalServer))
}
