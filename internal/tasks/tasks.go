package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// 任务类型常量
const (
	TypeHistoryPersistence = "history:persist" // 游戏动作审计落库
	TypeStaleReap          = "players:reap"    // 周期性回收心跳超时的玩家
)

// HistoryPersistencePayload 是审计落库任务的数据结构。
type HistoryPersistencePayload struct {
	Entry domain.HistoryEntry
}

// NewHistoryPersistenceTask 创建一条审计落库任务。
func NewHistoryPersistenceTask(entry domain.HistoryEntry) (*asynq.Task, error) {
	payload, err := json.Marshal(HistoryPersistencePayload{Entry: entry})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeHistoryPersistence, payload), nil
}

// NewStaleReapTask 创建一条无负载的周期性回收任务。
func NewStaleReapTask() *asynq.Task {
	return asynq.NewTask(TypeStaleReap, nil)
}
