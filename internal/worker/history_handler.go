package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
	"github.com/you-joon/bingoruzzol/internal/tasks"
)

// HistoryPersistenceHandler 处理审计落库任务。
type HistoryPersistenceHandler struct {
	historyRepo repository.HistoryRepository
}

// NewHistoryPersistenceHandler 创建 Handler 实例。
func NewHistoryPersistenceHandler(historyRepo repository.HistoryRepository) *HistoryPersistenceHandler {
	if historyRepo == nil {
		panic("historyRepo cannot be nil for HistoryPersistenceHandler")
	}
	return &HistoryPersistenceHandler{historyRepo: historyRepo}
}

// ProcessTask 实现 asynq.Handler 接口。
func (h *HistoryPersistenceHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	retry, _ := asynq.GetRetryCount(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"retry":     retry,
	})

	var payload tasks.HistoryPersistencePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal history payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.historyRepo.SaveBatch(ctx, []domain.HistoryEntry{payload.Entry}); err != nil {
		logCtx.WithError(err).WithField("room_code", payload.Entry.RoomCode).Error("Failed to save history entry")
		return fmt.Errorf("failed to save history entry for room %s: %w", payload.Entry.RoomCode, err)
	}

	logCtx.WithFields(logrus.Fields{
		"room_code": payload.Entry.RoomCode,
		"action":    payload.Entry.ActionType,
	}).Debug("History entry persisted")
	return nil
}
