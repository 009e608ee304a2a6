package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/repository"
	"github.com/you-joon/bingoruzzol/internal/service"
)

// StaleReapHandler 处理周期性的掉线玩家回收任务。
// 逐个活跃房间检查心跳超时的玩家并走正常离开流程，
// 使房主移交、空房清理、游戏安全复位都复用同一条路径。
type StaleReapHandler struct {
	roomRepo repository.RoomRepository
	rooms    *service.RoomService
}

// NewStaleReapHandler 创建 Handler 实例。
func NewStaleReapHandler(roomRepo repository.RoomRepository, rooms *service.RoomService) *StaleReapHandler {
	if roomRepo == nil || rooms == nil {
		panic("dependencies cannot be nil for StaleReapHandler")
	}
	return &StaleReapHandler{roomRepo: roomRepo, rooms: rooms}
}

// ProcessTask 实现 asynq.Handler 接口。
// 单个房间的失败只记录不中断，下一个周期会再次覆盖到它。
func (h *StaleReapHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	codes, err := h.roomRepo.ListActiveCodes(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list active rooms for reaping")
		return err
	}
	if len(codes) == 0 {
		return nil
	}

	reaped := 0
	for _, code := range codes {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		n, err := h.rooms.ReapStalePlayers(checkCtx, code)
		cancel()
		if err != nil {
			logCtx.WithError(err).WithField("room_code", code).Warn("Stale reap failed for room")
			continue
		}
		reaped += n
	}
	if reaped > 0 {
		logCtx.WithFields(logrus.Fields{"rooms": len(codes), "reaped": reaped}).Info("Reaped stale players")
	}
	return nil
}
