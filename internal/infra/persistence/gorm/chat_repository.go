package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// GormChatRepository 是 ChatRepository 接口的 GORM 实现
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository 创建 GormChatRepository 实例
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	if db == nil {
		panic("database connection cannot be nil for GormChatRepository")
	}
	return &GormChatRepository{db: db}
}

// Append 实现追加聊天消息
func (r *GormChatRepository) Append(ctx context.Context, message *domain.ChatMessage) error {
	err := r.db.WithContext(ctx).Create(message).Error
	if err != nil {
		return fmt.Errorf("gorm: append chat message to room '%s': %w", message.RoomCode, err)
	}
	return nil
}

// ListByRoom 实现返回房间内最近的 limit 条消息，按创建时间升序
func (r *GormChatRepository) ListByRoom(ctx context.Context, roomCode string, limit int) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	query := r.db.WithContext(ctx).
		Where("room_code = ?", roomCode).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("gorm: list chat messages of room '%s': %w", roomCode, err)
	}
	// 取最近 N 条后恢复时间升序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DetachAuthor 实现将玩家名下消息的作者置空
func (r *GormChatRepository) DetachAuthor(ctx context.Context, playerID uint) error {
	err := r.db.WithContext(ctx).Model(&domain.ChatMessage{}).
		Where("player_id = ?", playerID).
		Update("player_id", nil).Error
	if err != nil {
		return fmt.Errorf("gorm: detach author %d from chat messages: %w", playerID, err)
	}
	return nil
}

// DeleteByRoom 实现删除房间内全部消息
func (r *GormChatRepository) DeleteByRoom(ctx context.Context, roomCode string) error {
	err := r.db.WithContext(ctx).Where("room_code = ?", roomCode).Delete(&domain.ChatMessage{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete chat messages of room '%s': %w", roomCode, err)
	}
	return nil
}
