package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/tasks"
)

// HistoryEnqueuer 通过 Asynq 把审计条目排队落库，
// 让游戏主路径不等数据库写入。
type HistoryEnqueuer struct {
	client *asynq.Client
}

// NewHistoryEnqueuer 创建 HistoryEnqueuer 实例。
func NewHistoryEnqueuer(client *asynq.Client) *HistoryEnqueuer {
	if client == nil {
		panic("asynq client cannot be nil for HistoryEnqueuer")
	}
	return &HistoryEnqueuer{client: client}
}

// EnqueueHistory 实现 service.HistoryEnqueuer。
func (e *HistoryEnqueuer) EnqueueHistory(ctx context.Context, entry domain.HistoryEntry) error {
	task, err := tasks.NewHistoryPersistenceTask(entry)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task, asynq.Queue("low"), asynq.MaxRetry(5))
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"task_id":   info.ID,
		"room_code": entry.RoomCode,
		"action":    entry.ActionType,
	}).Debug("History entry enqueued")
	return nil
}
