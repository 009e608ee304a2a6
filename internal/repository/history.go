package repository

import (
	"context"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// HistoryRepository 定义了游戏动作审计日志的存储操作。
// 该日志只写不读：核心流程从不读取其内容。
type HistoryRepository interface {
	// SaveBatch 批量保存历史记录到持久化存储（由后台任务调用）。
	SaveBatch(ctx context.Context, entries []domain.HistoryEntry) error

	// DeleteByRoom 删除房间的全部历史记录（删房时调用）。
	DeleteByRoom(ctx context.Context, roomCode string) error
}
