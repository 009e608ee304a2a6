package repository

import (
	"context"
	"time"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// PlayerRepository 定义了房间内玩家记录的存储和检索操作。
type PlayerRepository interface {
	// FindByID 根据玩家 ID 查找玩家，不存在时返回 ErrPlayerNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Player, error)

	// FindByRoom 返回房间内全部玩家，按 turn_order 升序（未分配的按入座时间）。
	FindByRoom(ctx context.Context, roomCode string) ([]domain.Player, error)

	// FindByRoomAndName 按展示名（区分大小写）查找房间内玩家，
	// 用于加入时的重名拒绝。不存在时返回 ErrPlayerNotFound。
	FindByRoomAndName(ctx context.Context, roomCode string, name string) (*domain.Player, error)

	// Save 保存玩家信息：已存在则更新，否则创建。
	Save(ctx context.Context, player *domain.Player) error

	// Delete 删除玩家记录。
	Delete(ctx context.Context, id uint) error

	// AssignTurnOrders 批量写入开局时分配的回合顺序（玩家 ID -> 顺序号）。
	AssignTurnOrders(ctx context.Context, orders map[uint]int) error

	// CreditBingo 原子地为玩家记入宾果名次并返回分配到的名次。
	// 实现必须在单个事务内完成“统计已完成人数 + 条件置位”，
	// 保证 at-most-once：玩家已被记名时返回 ErrAlreadyCredited，不产生第二个名次。
	CreditBingo(ctx context.Context, roomCode string, playerID uint) (rank int, err error)

	// CountCompleted 统计房间内已达成宾果的玩家数。
	CountCompleted(ctx context.Context, roomCode string) (int64, error)

	// ResetGameState 清除房间内全部玩家的回合顺序、完成标记与名次（重置用）。
	ResetGameState(ctx context.Context, roomCode string) error

	// TouchHeartbeat 刷新玩家的心跳时间戳。
	TouchHeartbeat(ctx context.Context, id uint, at time.Time) error

	// FindStale 返回房间内心跳早于 before 的玩家，供任意参与者回收。
	FindStale(ctx context.Context, roomCode string, before time.Time) ([]domain.Player, error)
}
