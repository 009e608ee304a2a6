package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

// RoomConfig 是房间生命周期相关的配置项
type RoomConfig struct {
	DefaultWinCondition int           // 默认需要完成的线数
	MaxPlayers          int           // 单房间人数上限
	HeartbeatTTL        time.Duration // 心跳超过该时长未刷新即视为掉线
}

// RoomService 负责房间生命周期：创建 / 加入 / 离开 / 删除 / 重置 / 回收。
type RoomService struct {
	roomRepo    repository.RoomRepository
	playerRepo  repository.PlayerRepository
	boardRepo   repository.BoardRepository
	chatRepo    repository.ChatRepository
	historyRepo repository.HistoryRepository
	feed        repository.FeedRepository
	cfg         RoomConfig
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(
	roomRepo repository.RoomRepository,
	playerRepo repository.PlayerRepository,
	boardRepo repository.BoardRepository,
	chatRepo repository.ChatRepository,
	historyRepo repository.HistoryRepository,
	feed repository.FeedRepository,
	cfg RoomConfig,
) *RoomService {
	if roomRepo == nil || playerRepo == nil || boardRepo == nil || chatRepo == nil || historyRepo == nil || feed == nil {
		panic("all repositories must be non-nil for RoomService")
	}
	if cfg.DefaultWinCondition <= 0 {
		cfg.DefaultWinCondition = 3
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = 8
	}
	if cfg.HeartbeatTTL <= 0 {
		cfg.HeartbeatTTL = 30 * time.Second
	}
	return &RoomService{
		roomRepo:    roomRepo,
		playerRepo:  playerRepo,
		boardRepo:   boardRepo,
		chatRepo:    chatRepo,
		historyRepo: historyRepo,
		feed:        feed,
		cfg:         cfg,
	}
}

// CreateRoom 创建一个新房间并让创建者以房主身份入座。
func (s *RoomService) CreateRoom(ctx context.Context, hostName string, winCondition int) (*domain.Room, *domain.Player, error) {
	if hostName == "" {
		return nil, nil, ErrEmptyName
	}
	if winCondition <= 0 {
		winCondition = s.cfg.DefaultWinCondition
	}
	logCtx := logrus.WithField("host_name", hostName)

	// 1. 生成唯一的 4 位数字房间码并落库。
	// 同一瞬间的码冲突表现为唯一约束冲突，按创建失败处理并换码重试，
	// 绝不静默覆盖已有房间。
	room, err := s.createRoomWithUniqueCode(ctx, winCondition)
	if err != nil {
		logCtx.WithError(err).Error("Failed to create room with unique code")
		return nil, nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_code", room.Code)

	// 2. 创建房主玩家
	host := &domain.Player{
		RoomCode:   room.Code,
		Name:       hostName,
		IsHost:     true,
		LastSeenAt: time.Now().UTC(),
	}
	if err := s.playerRepo.Save(ctx, host); err != nil {
		logCtx.WithError(err).Error("Failed to save host player")
		// 已落库的空房间回收，避免留下无主房间
		_ = s.roomRepo.Delete(ctx, room.Code)
		return nil, nil, ErrInternalServer
	}

	// 3. 把房间的 host_id 回填为真实玩家 ID
	room.HostID = host.ID
	if err := s.roomRepo.UpdateFields(ctx, room.Code, map[string]interface{}{"host_id": host.ID}); err != nil {
		logCtx.WithError(err).Error("Failed to set host id on new room")
		return nil, nil, ErrInternalServer
	}

	logCtx.WithField("host_id", host.ID).Info("Room created successfully")
	return room, host, nil
}

// JoinRoom 处理玩家加入房间。
// 校验顺序: 名字非空 → 房间存在 → 房间可加入 → 房间未满 → 重名拒绝（区分大小写）。
// 任何校验失败都发生在持久化之前，只反馈给操作者本人。
func (s *RoomService) JoinRoom(ctx context.Context, code string, name string) (*domain.Room, *domain.Player, error) {
	if name == "" {
		return nil, nil, ErrEmptyName
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "player_name": name})

	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("JoinRoom: room not found")
			return nil, nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("JoinRoom: repository error")
		return nil, nil, ErrInternalServer
	}
	if !room.IsJoinable() {
		logCtx.Warn("JoinRoom: room is not joinable")
		return nil, nil, ErrRoomNotJoinable
	}

	players, err := s.playerRepo.FindByRoom(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("JoinRoom: failed to list players")
		return nil, nil, ErrInternalServer
	}
	if len(players) >= s.cfg.MaxPlayers {
		logCtx.Warn("JoinRoom: room is full")
		return nil, nil, ErrRoomFull
	}

	_, err = s.playerRepo.FindByRoomAndName(ctx, code, name)
	if err == nil {
		logCtx.Warn("JoinRoom: duplicate player name")
		return nil, nil, ErrDuplicateName
	}
	if !errors.Is(err, repository.ErrPlayerNotFound) {
		logCtx.WithError(err).Error("JoinRoom: failed to check duplicate name")
		return nil, nil, ErrInternalServer
	}

	player := &domain.Player{
		RoomCode:   code,
		Name:       name,
		IsHost:     false,
		LastSeenAt: time.Now().UTC(),
	}
	if err := s.playerRepo.Save(ctx, player); err != nil {
		logCtx.WithError(err).Error("JoinRoom: failed to save player")
		return nil, nil, ErrInternalServer
	}

	s.publishPlayersChanged(ctx, code, &player.ID)
	logCtx.WithField("player_id", player.ID).Info("Player joined room")
	return room, player, nil
}

// LeaveRoom 处理玩家离开房间。
// 最后一名玩家离开时连同房间与全部卫星记录一并删除；
// 房主离开时把房主身份移交给最早入座的幸存玩家；
// 游戏进行中任何人离开都会触发安全重置，房间绝不会卡在已离开玩家的回合上。
func (s *RoomService) LeaveRoom(ctx context.Context, code string, playerID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "player_id": playerID})

	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		logCtx.WithError(err).Error("LeaveRoom: repository error")
		return ErrInternalServer
	}

	leaver, err := s.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		logCtx.WithError(err).Error("LeaveRoom: failed to find leaving player")
		return ErrInternalServer
	}
	wasHost := leaver.IsHost
	wasPlaying := room.Status == domain.StatusPlaying

	// 1. 作者置空，消息保留
	if err := s.chatRepo.DetachAuthor(ctx, playerID); err != nil {
		logCtx.WithError(err).Error("LeaveRoom: failed to detach chat author")
		return ErrInternalServer
	}

	// 2. 删除玩家
	if err := s.playerRepo.Delete(ctx, playerID); err != nil {
		logCtx.WithError(err).Error("LeaveRoom: failed to delete player")
		return ErrInternalServer
	}

	remaining, err := s.playerRepo.FindByRoom(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("LeaveRoom: failed to list remaining players")
		return ErrInternalServer
	}

	// 3. 空房整体删除
	if len(remaining) == 0 {
		if err := s.DeleteRoom(ctx, code); err != nil {
			return err
		}
		logCtx.Info("Last player left, room deleted")
		return nil
	}

	// 4. 房主移交: 最早入座的幸存者接任
	if wasHost {
		nextHost := earliestJoined(remaining)
		nextHost.IsHost = true
		if err := s.playerRepo.Save(ctx, nextHost); err != nil {
			logCtx.WithError(err).Error("LeaveRoom: failed to promote new host")
			return ErrInternalServer
		}
		if err := s.roomRepo.UpdateFields(ctx, code, map[string]interface{}{"host_id": nextHost.ID}); err != nil {
			logCtx.WithError(err).Error("LeaveRoom: failed to update room host id")
			return ErrInternalServer
		}
		logCtx.WithField("new_host_id", nextHost.ID).Info("Host role transferred")
	}

	// 5. 游戏进行中有人离开 → 安全重置回 waiting
	if wasPlaying {
		if err := s.resetToWaiting(ctx, code, leaver.ID); err != nil {
			return err
		}
		s.announce(ctx, code, fmt.Sprintf("%s left mid-game, the game has been reset", leaver.Name))
	}

	s.publishPlayersChanged(ctx, code, nil)
	s.publishRoomUpdated(ctx, code)
	logCtx.Info("Player left room")
	return nil
}

// ResetRoom 由房主显式发起的重置。
func (s *RoomService) ResetRoom(ctx context.Context, code string, playerID uint) error {
	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return ErrInternalServer
	}
	if room.HostID != playerID {
		return ErrNotHost
	}
	if err := s.resetToWaiting(ctx, code, playerID); err != nil {
		return err
	}
	s.announce(ctx, code, "The host has reset the game")
	s.publishPlayersChanged(ctx, code, nil)
	s.publishRoomUpdated(ctx, code)
	return nil
}

// DeleteRoom 删除房间及其全部卫星记录。
// 删除顺序与外键依赖一致: 聊天 → 历史 → 板面 → 玩家(批量) → 房间。
func (s *RoomService) DeleteRoom(ctx context.Context, code string) error {
	logCtx := logrus.WithField("room_code", code)

	if err := s.chatRepo.DeleteByRoom(ctx, code); err != nil {
		logCtx.WithError(err).Error("DeleteRoom: failed to delete chat messages")
		return ErrInternalServer
	}
	if err := s.historyRepo.DeleteByRoom(ctx, code); err != nil {
		logCtx.WithError(err).Error("DeleteRoom: failed to delete history")
		return ErrInternalServer
	}
	if err := s.boardRepo.DeleteByRoom(ctx, code); err != nil {
		logCtx.WithError(err).Error("DeleteRoom: failed to delete boards")
		return ErrInternalServer
	}
	players, err := s.playerRepo.FindByRoom(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("DeleteRoom: failed to list players")
		return ErrInternalServer
	}
	for _, p := range players {
		if err := s.playerRepo.Delete(ctx, p.ID); err != nil {
			logCtx.WithError(err).Error("DeleteRoom: failed to delete player")
			return ErrInternalServer
		}
	}
	if err := s.roomRepo.Delete(ctx, code); err != nil {
		logCtx.WithError(err).Error("DeleteRoom: failed to delete room record")
		return ErrInternalServer
	}
	logCtx.Info("Room and all satellite records deleted")
	return nil
}

// RoomSummary 是大厅展示用的房间摘要
type RoomSummary struct {
	Code        string    `json:"code"`
	Status      string    `json:"status"`
	PlayerCount int       `json:"player_count"`
	HostName    string    `json:"host_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListWaitingRooms 返回可加入房间的摘要列表。
func (s *RoomService) ListWaitingRooms(ctx context.Context) ([]RoomSummary, error) {
	rooms, err := s.roomRepo.ListWaiting(ctx)
	if err != nil {
		logrus.WithError(err).Error("ListWaitingRooms: repository error")
		return nil, ErrInternalServer
	}
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		players, err := s.playerRepo.FindByRoom(ctx, room.Code)
		if err != nil {
			logrus.WithError(err).WithField("room_code", room.Code).Warn("ListWaitingRooms: failed to list players, skipping room")
			continue
		}
		hostName := ""
		for _, p := range players {
			if p.IsHost {
				hostName = p.Name
				break
			}
		}
		summaries = append(summaries, RoomSummary{
			Code:        room.Code,
			Status:      string(room.Status),
			PlayerCount: len(players),
			HostName:    hostName,
			CreatedAt:   room.CreatedAt,
		})
	}
	return summaries, nil
}

// GetRoomState 返回当前房间记录与玩家列表，供轮询兜底使用。
func (s *RoomService) GetRoomState(ctx context.Context, code string) (*domain.Room, []domain.Player, error) {
	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		return nil, nil, ErrInternalServer
	}
	players, err := s.playerRepo.FindByRoom(ctx, code)
	if err != nil {
		return nil, nil, ErrInternalServer
	}
	return room, players, nil
}

// Heartbeat 刷新玩家的在线时间戳。
func (s *RoomService) Heartbeat(ctx context.Context, playerID uint) error {
	if err := s.playerRepo.TouchHeartbeat(ctx, playerID, time.Now().UTC()); err != nil {
		logrus.WithError(err).WithField("player_id", playerID).Warn("Failed to touch heartbeat")
		return ErrInternalServer
	}
	return nil
}

// ReapStalePlayers 把心跳过期的玩家按正常离开处理。
// 离开客户端的 unload 通知只是 best-effort，滞留的座位最终由
// 任意其他参与者的例行轮询或后台任务在这里回收。
func (s *RoomService) ReapStalePlayers(ctx context.Context, code string) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.HeartbeatTTL)
	stale, err := s.playerRepo.FindStale(ctx, code, cutoff)
	if err != nil {
		logrus.WithError(err).WithField("room_code", code).Error("ReapStalePlayers: repository error")
		return 0, ErrInternalServer
	}
	reaped := 0
	for _, p := range stale {
		if err := s.LeaveRoom(ctx, code, p.ID); err != nil {
			// 房间可能已随上一个被回收的玩家一并删除
			if errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrPlayerNotFound) {
				continue
			}
			logrus.WithError(err).WithFields(logrus.Fields{
				"room_code": code, "player_id": p.ID,
			}).Warn("ReapStalePlayers: failed to reap player")
			continue
		}
		reaped++
	}
	if reaped > 0 {
		logrus.WithFields(logrus.Fields{"room_code": code, "reaped": reaped}).Info("Reaped stale players")
	}
	return reaped, nil
}

// --- 私有辅助函数 ---

// createRoomWithUniqueCode 生成唯一房间码并保存房间，码冲突时换码重试。
func (s *RoomService) createRoomWithUniqueCode(ctx context.Context, winCondition int) (*domain.Room, error) {
	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := generateRoomCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate room code: %w", err)
		}

		exists, err := s.roomRepo.IsCodeExists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("database error checking room code: %w", err)
		}
		if exists {
			logrus.WithField("room_code", code).Warnf("Generated room code already exists, retrying (attempt %d)...", attempt+1)
			continue
		}

		room := &domain.Room{
			Code:         code,
			Status:       domain.StatusWaiting,
			WinCondition: winCondition,
		}
		err = s.roomRepo.Save(ctx, room)
		if err == nil {
			return room, nil
		}
		// 检查与保存之间仍可能被别的创建抢先，唯一约束兜底
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logrus.WithField("room_code", code).Warnf("Room code collided at save, retrying (attempt %d)...", attempt+1)
			continue
		}
		return nil, fmt.Errorf("failed to save new room: %w", err)
	}
	return nil, fmt.Errorf("failed to generate a unique room code after %d attempts", maxAttempts)
}

// generateRoomCode 生成 1000..9999 的 4 位数字房间码
func generateRoomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

// earliestJoined 返回最早入座的玩家
func earliestJoined(players []domain.Player) *domain.Player {
	earliest := &players[0]
	for i := range players {
		if players[i].CreatedAt.Before(earliest.CreatedAt) {
			earliest = &players[i]
		}
	}
	return earliest
}

// resetToWaiting 把房间重置回 waiting:
// 清回合归属、回合顺序、名次、完成标记与最近选格，并删除全部板面。
func (s *RoomService) resetToWaiting(ctx context.Context, code string, actorID uint) error {
	logCtx := logrus.WithField("room_code", code)
	fields := map[string]interface{}{
		"status":          domain.StatusWaiting,
		"current_turn":    nil,
		"last_cell_index": nil,
		"last_cell_value": nil,
		"last_player":     nil,
	}
	if err := s.roomRepo.UpdateFields(ctx, code, fields); err != nil {
		logCtx.WithError(err).Error("Failed to reset room record")
		return ErrInternalServer
	}
	if err := s.playerRepo.ResetGameState(ctx, code); err != nil {
		logCtx.WithError(err).Error("Failed to reset player game state")
		return ErrInternalServer
	}
	if err := s.boardRepo.DeleteByRoom(ctx, code); err != nil {
		logCtx.WithError(err).Error("Failed to delete boards on reset")
		return ErrInternalServer
	}

	entry := domain.HistoryEntry{
		RoomCode:   code,
		PlayerID:   actorID,
		ActionType: domain.ActionReset,
		Timestamp:  time.Now().UTC(),
	}
	if err := entry.SetData(domain.PickData{}); err == nil {
		if err := s.historyRepo.SaveBatch(ctx, []domain.HistoryEntry{entry}); err != nil {
			// 审计日志只写不读，落库失败不阻断重置
			logCtx.WithError(err).Warn("Failed to record reset in history")
		}
	}

	logCtx.WithField("actor_id", actorID).Info("Room reset to waiting")
	return nil
}

// announce 写入一条系统聊天消息并广播
func (s *RoomService) announce(ctx context.Context, code string, text string) {
	msg := &domain.ChatMessage{RoomCode: code, PlayerID: nil, Message: text}
	if err := s.chatRepo.Append(ctx, msg); err != nil {
		logrus.WithError(err).WithField("room_code", code).Warn("Failed to append system chat message")
		return
	}
	payload, _ := json.Marshal(msg)
	s.publish(ctx, domain.ChangeEvent{
		Type: domain.EventSystem, RoomCode: code, Payload: payload, At: time.Now().UTC(),
	})
}

func (s *RoomService) publishPlayersChanged(ctx context.Context, code string, playerID *uint) {
	s.publish(ctx, domain.ChangeEvent{
		Type: domain.EventPlayersChanged, RoomCode: code, PlayerID: playerID, At: time.Now().UTC(),
	})
}

func (s *RoomService) publishRoomUpdated(ctx context.Context, code string) {
	s.publish(ctx, domain.ChangeEvent{
		Type: domain.EventRoomUpdated, RoomCode: code, At: time.Now().UTC(),
	})
}

// publish 发布变更事件；发布失败只记录，轮询兜底会补上这次通知。
func (s *RoomService) publish(ctx context.Context, event domain.ChangeEvent) {
	if err := s.feed.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_code": event.RoomCode, "event_type": event.Type,
		}).Warn("Failed to publish change event")
	}
}
