package repository

import (
	"context"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// RoomRepository 定义了房间记录的存储和检索操作。
type RoomRepository interface {
	// FindByCode 根据房间码查找房间。
	// 房间不存在时返回 ErrRoomNotFound。
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// Save 保存房间信息：已存在 (基于 ID) 则更新，否则创建。
	// 房间码冲突时返回 ErrDuplicateEntry，调用方应重新生成房间码重试，
	// 绝不允许静默覆盖已存在的房间。
	Save(ctx context.Context, room *domain.Room) error

	// UpdateFields 对指定房间做部分字段更新（状态迁移、回合推进、最近选格）。
	UpdateFields(ctx context.Context, code string, fields map[string]interface{}) error

	// Delete 删除房间记录本身（卫星记录由各自的仓库删除）。
	Delete(ctx context.Context, code string) error

	// ListWaiting 列出所有处于 waiting 状态的房间，供大厅展示。
	ListWaiting(ctx context.Context) ([]domain.Room, error)

	// ListActiveCodes 列出所有仍存在房间的房间码，供后台回收任务巡检。
	// 包含已结束的房间，被弃置的残局同样需要回收。
	ListActiveCodes(ctx context.Context) ([]string, error)

	// IsCodeExists 检查房间码是否已被占用。
	IsCodeExists(ctx context.Context, code string) (bool, error)
}
