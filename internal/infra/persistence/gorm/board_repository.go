package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

// GormBoardRepository 是 BoardRepository 接口的 GORM 实现
type GormBoardRepository struct {
	db *gorm.DB
}

// NewGormBoardRepository 创建 GormBoardRepository 实例
func NewGormBoardRepository(db *gorm.DB) *GormBoardRepository {
	if db == nil {
		panic("database connection cannot be nil for GormBoardRepository")
	}
	return &GormBoardRepository{db: db}
}

// FindByRoomAndPlayer 实现查找玩家已保存的板面
func (r *GormBoardRepository) FindByRoomAndPlayer(ctx context.Context, roomCode string, playerID uint) (*domain.Board, error) {
	var board domain.Board
	err := r.db.WithContext(ctx).
		Where("room_code = ? AND player_id = ?", roomCode, playerID).
		First(&board).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrBoardNotFound
		}
		return nil, fmt.Errorf("gorm: find board of player %d in room '%s': %w", playerID, roomCode, err)
	}
	return &board, nil
}

// Upsert 实现保存板面：已有则覆盖格子内容，否则创建
func (r *GormBoardRepository) Upsert(ctx context.Context, board *domain.Board) error {
	var existing domain.Board
	err := r.db.WithContext(ctx).
		Where("room_code = ? AND player_id = ?", board.RoomCode, board.PlayerID).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if createErr := r.db.WithContext(ctx).Create(board).Error; createErr != nil {
				return fmt.Errorf("gorm: create board for player %d in room '%s': %w", board.PlayerID, board.RoomCode, createErr)
			}
			return nil
		}
		return fmt.Errorf("gorm: lookup board for upsert (player %d, room '%s'): %w", board.PlayerID, board.RoomCode, err)
	}

	existing.Cells = board.Cells
	if saveErr := r.db.WithContext(ctx).Save(&existing).Error; saveErr != nil {
		return fmt.Errorf("gorm: update board %d: %w", existing.ID, saveErr)
	}
	board.ID = existing.ID
	return nil
}

// DeleteByRoom 实现删除房间内全部板面
func (r *GormBoardRepository) DeleteByRoom(ctx context.Context, roomCode string) error {
	err := r.db.WithContext(ctx).Where("room_code = ?", roomCode).Delete(&domain.Board{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete boards of room '%s': %w", roomCode, err)
	}
	return nil
}
