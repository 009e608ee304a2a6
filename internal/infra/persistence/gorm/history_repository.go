package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// GormHistoryRepository 是 HistoryRepository 接口的 GORM 实现
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository 创建 GormHistoryRepository 实例
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	if db == nil {
		panic("database connection cannot be nil for GormHistoryRepository")
	}
	return &GormHistoryRepository{db: db}
}

// SaveBatch 实现批量保存历史记录
func (r *GormHistoryRepository) SaveBatch(ctx context.Context, entries []domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Create(&entries).Error
	if err != nil {
		return fmt.Errorf("gorm: save %d history entries: %w", len(entries), err)
	}
	return nil
}

// DeleteByRoom 实现删除房间的全部历史记录
func (r *GormHistoryRepository) DeleteByRoom(ctx context.Context, roomCode string) error {
	err := r.db.WithContext(ctx).Where("room_code = ?", roomCode).Delete(&domain.HistoryEntry{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete history of room '%s': %w", roomCode, err)
	}
	return nil
}
