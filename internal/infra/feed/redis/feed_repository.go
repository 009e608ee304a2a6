package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

// RedisFeedRepository 是 FeedRepository 接口的 Redis Pub/Sub 实现
type RedisFeedRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisFeedRepository 创建 RedisFeedRepository 实例
func NewRedisFeedRepository(client *redis.Client, keyPrefix string) *RedisFeedRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisFeedRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "bingo:"
	}
	return &RedisFeedRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisFeedRepository) roomFeedChannel(roomCode string) string {
	return fmt.Sprintf("%sroom:%s:feed", r.keyPrefix, roomCode)
}

// Publish 将一条变更事件发布到对应房间的频道
func (r *RedisFeedRepository) Publish(ctx context.Context, event domain.ChangeEvent) error {
	channel := r.roomFeedChannel(event.RoomCode)
	payloadBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal change event (type %s): %w", event.Type, err)
	}
	if err := r.client.Publish(ctx, channel, string(payloadBytes)).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payloadBytes),
			"event_type":   event.Type,
			"room_code":    event.RoomCode,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish event to channel %s: %w", channel, err)
	}
	return nil
}

// redisSubscription 封装一路 Pub/Sub 订阅
type redisSubscription struct {
	pubsub *redis.PubSub
	events chan domain.ChangeEvent
}

func (s *redisSubscription) Events() <-chan domain.ChangeEvent { return s.events }

func (s *redisSubscription) Close() error { return s.pubsub.Close() }

// Subscribe 订阅指定房间的变更事件。
// 解码失败的消息只记录警告并跳过，不中断订阅。
func (r *RedisFeedRepository) Subscribe(ctx context.Context, roomCode string) (repository.FeedSubscription, error) {
	channel := r.roomFeedChannel(roomCode)
	pubsub := r.client.Subscribe(ctx, channel)

	// 确认订阅已生效，避免错过紧随其后的事件
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: failed to subscribe to channel %s: %w", channel, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan domain.ChangeEvent, 64),
	}

	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var event domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logrus.WithFields(logrus.Fields{
					"channel": channel,
				}).WithError(err).Warn("Failed to unmarshal change event, skipping")
				continue
			}
			sub.events <- event
		}
	}()

	return sub, nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数
func (r *RedisFeedRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, r.keyPrefix+key)
	pipe.Expire(ctx, r.keyPrefix+key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}
