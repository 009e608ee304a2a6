package repository

import (
	"context"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// ChatRepository 定义了房间聊天消息的存储操作。
type ChatRepository interface {
	// Append 追加一条聊天消息（playerID 为 nil 表示系统消息）。
	Append(ctx context.Context, message *domain.ChatMessage) error

	// ListByRoom 返回房间内最近的 limit 条消息，按创建时间升序；
	// limit <= 0 表示不限制。
	ListByRoom(ctx context.Context, roomCode string, limit int) ([]domain.ChatMessage, error)

	// DetachAuthor 将某玩家名下所有消息的作者置空（玩家离开时调用，消息保留）。
	DetachAuthor(ctx context.Context, playerID uint) error

	// DeleteByRoom 删除房间内全部消息（删房时调用）。
	DeleteByRoom(ctx context.Context, roomCode string) error
}
