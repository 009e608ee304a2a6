package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

// GormPlayerRepository 是 PlayerRepository 接口的 GORM 实现
type GormPlayerRepository struct {
	db *gorm.DB
}

// NewGormPlayerRepository 创建 GormPlayerRepository 实例
func NewGormPlayerRepository(db *gorm.DB) *GormPlayerRepository {
	if db == nil {
		panic("database connection cannot be nil for GormPlayerRepository")
	}
	return &GormPlayerRepository{db: db}
}

// FindByID 实现根据玩家 ID 查找玩家
func (r *GormPlayerRepository) FindByID(ctx context.Context, id uint) (*domain.Player, error) {
	var player domain.Player
	err := r.db.WithContext(ctx).First(&player, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("gorm: find player by id %d: %w", id, err)
	}
	return &player, nil
}

// FindByRoom 实现返回房间内全部玩家。
// 排序规则: 已分配 turn_order 的在前按顺序号，未分配的按入座时间。
func (r *GormPlayerRepository) FindByRoom(ctx context.Context, roomCode string) ([]domain.Player, error) {
	var players []domain.Player
	err := r.db.WithContext(ctx).
		Where("room_code = ?", roomCode).
		Order("turn_order IS NULL, turn_order ASC, created_at ASC").
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find players by room '%s': %w", roomCode, err)
	}
	return players, nil
}

// FindByRoomAndName 实现按展示名查找房间内玩家（区分大小写）
func (r *GormPlayerRepository) FindByRoomAndName(ctx context.Context, roomCode string, name string) (*domain.Player, error) {
	var player domain.Player
	// MySQL 默认排序规则不区分大小写，这里用 BINARY 比较保证区分
	err := r.db.WithContext(ctx).
		Where("room_code = ? AND BINARY name = ?", roomCode, name).
		First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("gorm: find player by room '%s' and name: %w", roomCode, err)
	}
	return &player, nil
}

// Save 实现保存玩家信息（创建或更新）
func (r *GormPlayerRepository) Save(ctx context.Context, player *domain.Player) error {
	err := r.db.WithContext(ctx).Save(player).Error
	if err != nil {
		return fmt.Errorf("gorm: save player (id: %d, room: %s): %w", player.ID, player.RoomCode, err)
	}
	return nil
}

// Delete 实现删除玩家记录
func (r *GormPlayerRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Delete(&domain.Player{}, id).Error
	if err != nil {
		return fmt.Errorf("gorm: delete player %d: %w", id, err)
	}
	return nil
}

// AssignTurnOrders 实现批量写入回合顺序
func (r *GormPlayerRepository) AssignTurnOrders(ctx context.Context, orders map[uint]int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for playerID, order := range orders {
			err := tx.Model(&domain.Player{}).
				Where("id = ?", playerID).
				Update("turn_order", order).Error
			if err != nil {
				return fmt.Errorf("gorm: assign turn order %d to player %d: %w", order, playerID, err)
			}
		}
		return nil
	})
}

// CreditBingo 实现原子的宾果记名。
// 在单个事务内锁住房间内已完成玩家的行集、统计数量、再条件置位：
// 条件更新未命中任何行说明玩家已被记名，返回 ErrAlreadyCredited。
// 记名由此保证 at-most-once，名次在房间内严格递增。
func (r *GormPlayerRepository) CreditBingo(ctx context.Context, roomCode string, playerID uint) (int, error) {
	var rank int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁住房间内全部玩家行，串行化并发的记名请求
		var players []domain.Player
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_code = ?", roomCode).
			Find(&players).Error; err != nil {
			return fmt.Errorf("gorm: lock players of room '%s': %w", roomCode, err)
		}

		completed := 0
		for _, p := range players {
			if p.BingoCompleted {
				completed++
			}
		}
		rank = completed + 1

		result := tx.Model(&domain.Player{}).
			Where("id = ? AND bingo_completed = ?", playerID, false).
			Updates(map[string]interface{}{
				"bingo_completed": true,
				"rank":            rank,
			})
		if result.Error != nil {
			return fmt.Errorf("gorm: credit bingo for player %d: %w", playerID, result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrAlreadyCredited
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rank, nil
}

// CountCompleted 实现统计房间内已达成宾果的玩家数
func (r *GormPlayerRepository) CountCompleted(ctx context.Context, roomCode string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Player{}).
		Where("room_code = ? AND bingo_completed = ?", roomCode, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count completed players of room '%s': %w", roomCode, err)
	}
	return count, nil
}

// ResetGameState 实现清除房间内全部玩家的对局状态
func (r *GormPlayerRepository) ResetGameState(ctx context.Context, roomCode string) error {
	err := r.db.WithContext(ctx).Model(&domain.Player{}).
		Where("room_code = ?", roomCode).
		Updates(map[string]interface{}{
			"turn_order":      nil,
			"bingo_completed": false,
			"rank":            nil,
		}).Error
	if err != nil {
		return fmt.Errorf("gorm: reset game state of room '%s': %w", roomCode, err)
	}
	return nil
}

// TouchHeartbeat 实现刷新玩家心跳时间戳
func (r *GormPlayerRepository) TouchHeartbeat(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.Player{}).
		Where("id = ?", id).
		Update("last_seen_at", at).Error
	if err != nil {
		return fmt.Errorf("gorm: touch heartbeat of player %d: %w", id, err)
	}
	return nil
}

// FindStale 实现返回心跳过期的玩家
func (r *GormPlayerRepository) FindStale(ctx context.Context, roomCode string, before time.Time) ([]domain.Player, error) {
	var players []domain.Player
	err := r.db.WithContext(ctx).
		Where("room_code = ? AND last_seen_at < ?", roomCode, before).
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find stale players of room '%s': %w", roomCode, err)
	}
	return players, nil
}
