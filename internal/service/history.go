package service

import (
	"context"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// HistoryEnqueuer 将一条审计记录排入后台持久化队列。
// 审计日志只写不读，失败只记录日志、不阻断游戏流程。
type HistoryEnqueuer interface {
	EnqueueHistory(ctx context.Context, entry domain.HistoryEntry) error
}
