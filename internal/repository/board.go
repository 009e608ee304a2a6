package repository

import (
	"context"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// BoardRepository 定义了玩家宾果板的存储操作。
type BoardRepository interface {
	// FindByRoomAndPlayer 查找玩家在房间内已保存的板面，
	// 不存在时返回 ErrBoardNotFound（调用方据此走新建路径）。
	FindByRoomAndPlayer(ctx context.Context, roomCode string, playerID uint) (*domain.Board, error)

	// Upsert 保存板面：同一 (房间, 玩家) 已有板面则覆盖其格子内容，否则创建。
	// 重连的玩家据此拿回自己原来的板面。
	Upsert(ctx context.Context, board *domain.Board) error

	// DeleteByRoom 删除房间内全部板面（重置或删房时调用）。
	DeleteByRoom(ctx context.Context, roomCode string) error
}
