package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

// StateProvider 为轮询兜底通道生成房间与玩家快照帧。
// 由上层协议实现，Hub 只负责投递。RoomSnapshot 同时返回房间记录本身，
// 供各连接的对账会话套用最近选格追赶信号。
type StateProvider interface {
	RoomSnapshot(ctx context.Context, code string) (*domain.Room, []byte, error)
	PlayersSnapshot(ctx context.Context, code string) ([]byte, error)
}

// roomEntry 持有一个房间的在线连接集合和共享资源:
// 一条变更流订阅 + 一个轮询协程，首个客户端进入时建立，最后一个离开时回收。
type roomEntry struct {
	clients    map[*Client]bool
	sub        repository.FeedSubscription
	cancelPoll context.CancelFunc
}

// Hub 维护按房间号组织的活跃客户端集合。
// 推送通道: 每个房间订阅一条变更流，事件转发给房间内所有连接；
// 轮询通道: 定期广播房间/玩家快照，作为推送丢失时的兜底。
// 两条通道在投递前都会经过各连接的对账会话，重复到达是无害的空操作。
type Hub struct {
	register   chan *Client
	unregister chan *Client

	rooms   map[string]*roomEntry
	roomsMu sync.RWMutex

	feed     repository.FeedRepository
	provider StateProvider

	// onReconciled 在某条连接的对账网格因共享选格发生变化后触发，
	// 上层据此重新评估连线与完成状态。
	onReconciled func(ctx context.Context, c *Client)

	roomPollInterval   time.Duration
	playerPollInterval time.Duration
}

// NewHub 创建 Hub 实例。轮询间隔非正时取参考默认值（房间 3s、玩家 5s）。
func NewHub(feed repository.FeedRepository, provider StateProvider, roomPoll, playerPoll time.Duration) *Hub {
	if roomPoll <= 0 {
		roomPoll = 3 * time.Second
	}
	if playerPoll <= 0 {
		playerPoll = 5 * time.Second
	}
	return &Hub{
		register:           make(chan *Client),
		unregister:         make(chan *Client),
		rooms:              make(map[string]*roomEntry),
		feed:               feed,
		provider:           provider,
		roomPollInterval:   roomPoll,
		playerPollInterval: playerPoll,
	}
}

// Run 启动 Hub 主循环，处理注册与注销请求。
func (h *Hub) Run(ctx context.Context) {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info("Hub stopped")
			return

		case client := <-h.register:
			h.addClient(ctx, client)
			log.WithFields(logrus.Fields{
				"room_code": client.roomCode,
				"player_id": client.playerID,
			}).Info("Client registered")

		case client := <-h.unregister:
			h.removeClient(client)
			log.WithFields(logrus.Fields{
				"room_code": client.roomCode,
				"player_id": client.playerID,
			}).Info("Client unregistered")
		}
	}
}

// SetStateProvider 注入快照来源，须在 Run 之前调用。
// Hub 与协议层互相引用，构造时先建 Hub 再回填 provider。
func (h *Hub) SetStateProvider(p StateProvider) {
	h.provider = p
}

// SetReconcileHook 注册对账后回调，须在 Run 之前调用。
func (h *Hub) SetReconcileHook(fn func(ctx context.Context, c *Client)) {
	h.onReconciled = fn
}

// Register 把客户端接入 Hub。
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister 把客户端从 Hub 摘除。
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

func (h *Hub) addClient(ctx context.Context, client *Client) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	entry, ok := h.rooms[client.roomCode]
	if !ok {
		entry = &roomEntry{clients: make(map[*Client]bool)}
		h.rooms[client.roomCode] = entry

		sub, err := h.feed.Subscribe(ctx, client.roomCode)
		if err != nil {
			// 订阅失败时房间退化为纯轮询模式
			logrus.WithError(err).WithField("room_code", client.roomCode).
				Error("Failed to subscribe room feed, falling back to polling only")
		} else {
			entry.sub = sub
			go h.relayFeed(client.roomCode, sub)
		}

		pollCtx, cancel := context.WithCancel(ctx)
		entry.cancelPoll = cancel
		go h.pollRoom(pollCtx, client.roomCode)
	}
	entry.clients[client] = true
}

func (h *Hub) removeClient(client *Client) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	entry, ok := h.rooms[client.roomCode]
	if !ok {
		return
	}
	if _, ok := entry.clients[client]; !ok {
		return
	}
	delete(entry.clients, client)
	close(client.send)

	if len(entry.clients) == 0 {
		h.teardownLocked(client.roomCode, entry)
		logrus.WithField("room_code", client.roomCode).Info("Room has no clients, released feed subscription")
	}
}

func (h *Hub) teardownLocked(code string, entry *roomEntry) {
	if entry.sub != nil {
		if err := entry.sub.Close(); err != nil {
			logrus.WithError(err).WithField("room_code", code).Warn("Failed to close feed subscription")
		}
	}
	if entry.cancelPoll != nil {
		entry.cancelPoll()
	}
	delete(h.rooms, code)
}

func (h *Hub) closeAll() {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for code, entry := range h.rooms {
		for client := range entry.clients {
			close(client.send)
		}
		entry.clients = map[*Client]bool{}
		h.teardownLocked(code, entry)
	}
}

// relayFeed 把房间变更流上的事件投递给房间内所有连接。
// pick 事件先套用到各连接的对账网格再转发，投递语义 at-least-once。
func (h *Hub) relayFeed(code string, sub repository.FeedSubscription) {
	logCtx := logrus.WithField("room_code", code)
	for event := range sub.Events() {
		frame, err := json.Marshal(event)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to marshal feed event")
			continue
		}
		h.deliver(code, frame, func(c *Client) bool {
			return c.reconciler != nil && c.reconciler.ApplyEvent(event)
		})
	}
	logCtx.Debug("Feed relay stopped")
}

// pollRoom 按固定间隔广播房间与玩家快照。
// 这是推送丢失时的兜底通道: 快照覆盖完整状态，客户端幂等套用。
func (h *Hub) pollRoom(ctx context.Context, code string) {
	if h.provider == nil {
		return
	}
	roomTicker := time.NewTicker(h.roomPollInterval)
	playerTicker := time.NewTicker(h.playerPollInterval)
	defer roomTicker.Stop()
	defer playerTicker.Stop()

	logCtx := logrus.WithField("room_code", code)
	for {
		select {
		case <-ctx.Done():
			logCtx.Debug("Room poller stopped")
			return
		case <-roomTicker.C:
			room, frame, err := h.provider.RoomSnapshot(ctx, code)
			if err != nil {
				logCtx.WithError(err).Debug("Room snapshot failed")
				continue
			}
			h.deliver(code, frame, func(c *Client) bool {
				return c.reconciler != nil && c.reconciler.ApplyRoomSignal(room)
			})
		case <-playerTicker.C:
			frame, err := h.provider.PlayersSnapshot(ctx, code)
			if err != nil {
				logCtx.WithError(err).Debug("Players snapshot failed")
				continue
			}
			h.deliver(code, frame, nil)
		}
	}
}

// Broadcast 把一帧原样发给房间内所有连接。
func (h *Hub) Broadcast(code string, frame []byte) {
	h.deliver(code, frame, nil)
}

// deliver 对房间内每个连接先执行对账回调，再投递帧。
// 对账与回调在锁外执行；发送缓冲已满时该帧对慢客户端丢弃，
// 漏掉的状态由轮询兜底通道补齐。
func (h *Hub) deliver(code string, frame []byte, reconcile func(*Client) bool) {
	h.roomsMu.RLock()
	entry, ok := h.rooms[code]
	if !ok {
		h.roomsMu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(entry.clients))
	for client := range entry.clients {
		targets = append(targets, client)
	}
	h.roomsMu.RUnlock()

	for _, client := range targets {
		changed := reconcile != nil && reconcile(client)
		client.Send(frame)
		if changed && h.onReconciled != nil {
			h.onReconciled(context.Background(), client)
		}
	}
}
