package repository

import (
	"context"
	"time"

	"github.com/you-joon/bingoruzzol/internal/domain"
)

// FeedSubscription 是对一路房间变更订阅的句柄。
type FeedSubscription interface {
	// Events 返回事件通道；订阅关闭后通道随之关闭。
	Events() <-chan domain.ChangeEvent
	// Close 取消订阅并释放底层连接。
	Close() error
}

// FeedRepository 定义了按房间分频道的变更通知流，通常由 Redis Pub/Sub 实现。
// 投递语义为 at-least-once，不保证跨房间的全局顺序；
// 推送可能出现间隙，消费端必须配合周期轮询作为兜底。
type FeedRepository interface {
	// Publish 将一条变更事件发布到对应房间的频道。
	Publish(ctx context.Context, event domain.ChangeEvent) error

	// Subscribe 订阅指定房间的变更事件。
	Subscribe(ctx context.Context, roomCode string) (FeedSubscription, error)

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 表示超限。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
