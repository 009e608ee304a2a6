package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

const maxChatMessageLen = 500

// ChatService 处理房间内聊天: 存储后广播，晚到的客户端靠 List 补齐。
type ChatService struct {
	chatRepo   repository.ChatRepository
	playerRepo repository.PlayerRepository
	feed       repository.FeedRepository
}

// NewChatService 创建 ChatService 实例。
func NewChatService(chatRepo repository.ChatRepository, playerRepo repository.PlayerRepository, feed repository.FeedRepository) *ChatService {
	if chatRepo == nil || playerRepo == nil || feed == nil {
		panic("all dependencies must be non-nil for ChatService")
	}
	return &ChatService{chatRepo: chatRepo, playerRepo: playerRepo, feed: feed}
}

// Send 校验并落库一条玩家消息，然后向房间广播 chat 事件。
func (s *ChatService) Send(ctx context.Context, code string, playerID uint, text string) (*domain.ChatMessage, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "player_id": playerID})

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > maxChatMessageLen {
		// 截断点退到 rune 边界，避免把多字节字符切成半个
		cut := maxChatMessageLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	player, err := s.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		logCtx.WithError(err).Error("Send: repository error")
		return nil, ErrInternalServer
	}
	if player.RoomCode != code {
		return nil, ErrPlayerNotFound
	}

	pid := playerID
	msg := &domain.ChatMessage{
		RoomCode: code,
		PlayerID: &pid,
		Message:  text,
	}
	if err := s.chatRepo.Append(ctx, msg); err != nil {
		logCtx.WithError(err).Error("Send: failed to append chat message")
		return nil, ErrInternalServer
	}

	event := domain.ChangeEvent{
		Type:     domain.EventChat,
		RoomCode: code,
		PlayerID: &pid,
		At:       time.Now().UTC(),
	}
	if err := s.feed.Publish(ctx, event); err != nil {
		logCtx.WithError(err).Warn("Send: failed to publish chat event")
	}
	return msg, nil
}

// List 返回房间内按时间升序的最近消息，limit<=0 时取默认条数。
func (s *ChatService) List(ctx context.Context, code string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	msgs, err := s.chatRepo.ListByRoom(ctx, code, limit)
	if err != nil {
		logrus.WithError(err).WithField("room_code", code).Error("List: failed to load chat messages")
		return nil, ErrInternalServer
	}
	return msgs, nil
}
