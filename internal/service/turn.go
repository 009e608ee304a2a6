package service

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/bingo"
	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

// FirstMoverPolicy 决定开局时第一手归属。
type FirstMoverPolicy string

const (
	// FirstMoverHost: 回合顺序随机，但第一手永远是房主。
	FirstMoverHost FirstMoverPolicy = "host"
	// FirstMoverRandom 完全随机: 第一手是回合顺序 0 的玩家。
	FirstMoverRandom FirstMoverPolicy = "random"
)

// TurnService 是回合协调器: 持有回合归属，仲裁并发的选格提交。
// "current_turn" 字段是房间里唯一的互斥原语，归属检查在这里权威完成，
// 从不信任客户端自报的“轮到我了”。
type TurnService struct {
	roomRepo   repository.RoomRepository
	playerRepo repository.PlayerRepository
	feed       repository.FeedRepository
	chatRepo   repository.ChatRepository
	history    HistoryEnqueuer
	firstMover FirstMoverPolicy
}

// NewTurnService 创建 TurnService 实例。
func NewTurnService(
	roomRepo repository.RoomRepository,
	playerRepo repository.PlayerRepository,
	chatRepo repository.ChatRepository,
	feed repository.FeedRepository,
	history HistoryEnqueuer,
	firstMover FirstMoverPolicy,
) *TurnService {
	if roomRepo == nil || playerRepo == nil || chatRepo == nil || feed == nil || history == nil {
		panic("all dependencies must be non-nil for TurnService")
	}
	if firstMover != FirstMoverRandom {
		firstMover = FirstMoverHost
	}
	return &TurnService{
		roomRepo:   roomRepo,
		playerRepo: playerRepo,
		chatRepo:   chatRepo,
		feed:       feed,
		history:    history,
		firstMover: firstMover,
	}
}

// StartGame 处理 waiting → playing 迁移。
// 仅房主可发起，要求至少 2 名在座玩家；为全部玩家分配 0..N-1 的
// 随机排列作为回合顺序，并按第一手策略设置 current_turn。
func (s *TurnService) StartGame(ctx context.Context, code string, playerID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "player_id": playerID})

	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		logCtx.WithError(err).Error("StartGame: repository error")
		return ErrInternalServer
	}
	if room.Status != domain.StatusWaiting {
		return ErrRoomNotJoinable
	}
	if room.HostID != playerID {
		return ErrNotHost
	}

	players, err := s.playerRepo.FindByRoom(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("StartGame: failed to list players")
		return ErrInternalServer
	}
	if len(players) < 2 {
		return ErrNotEnoughPlayers
	}

	// 随机排列回合顺序
	shuffled := make([]domain.Player, len(players))
	copy(shuffled, players)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	orders := make(map[uint]int, len(shuffled))
	for i, p := range shuffled {
		orders[p.ID] = i
	}
	if err := s.playerRepo.AssignTurnOrders(ctx, orders); err != nil {
		logCtx.WithError(err).Error("StartGame: failed to assign turn orders")
		return ErrInternalServer
	}

	// 第一手归属: 默认房主先手，按策略可改为完全随机
	firstTurn := room.HostID
	if s.firstMover == FirstMoverRandom {
		firstTurn = shuffled[0].ID
	}

	err = s.roomRepo.UpdateFields(ctx, code, map[string]interface{}{
		"status":       domain.StatusPlaying,
		"current_turn": firstTurn,
	})
	if err != nil {
		logCtx.WithError(err).Error("StartGame: failed to update room status")
		return ErrInternalServer
	}

	s.enqueueHistory(ctx, code, playerID, domain.ActionGameStart, domain.PickData{})
	s.announce(ctx, code, "Game started, good luck!")
	s.publish(ctx, domain.ChangeEvent{Type: domain.EventPlayersChanged, RoomCode: code, At: time.Now().UTC()})
	s.publish(ctx, domain.ChangeEvent{Type: domain.EventRoomUpdated, RoomCode: code, At: time.Now().UTC()})
	logCtx.WithField("first_turn", firstTurn).Info("Game started")
	return nil
}

// SubmitCell 处理回合内的选格提交。
// 接受条件: 房间 playing、提交者恰好持有回合、格子下标合法且尚未在提交者
// 网格中标记。被拒绝的提交是 fail-local 的空操作: 不改动房间状态、
// 不产生广播，错误只返回给提交者。
// 接受后: 持久化共享的最近选格、异步记审计、把回合推进到下一个未完成玩家。
func (s *TurnService) SubmitCell(ctx context.Context, code string, playerID uint, cellIndex int, cellValue string, grid bingo.MarkGrid) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": code, "player_id": playerID, "cell_index": cellIndex,
	})

	if cellIndex < 0 || cellIndex >= bingo.BoardSize {
		return ErrInvalidCell
	}
	if grid[cellIndex] {
		return ErrCellAlreadyMarked
	}

	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		logCtx.WithError(err).Error("SubmitCell: repository error")
		return ErrInternalServer
	}
	if room.Status != domain.StatusPlaying {
		return ErrGameNotPlaying
	}
	if room.CurrentTurn == nil || *room.CurrentTurn != playerID {
		return ErrNotYourTurn
	}

	players, err := s.playerRepo.FindByRoom(ctx, code)
	if err != nil {
		logCtx.WithError(err).Error("SubmitCell: failed to list players")
		return ErrInternalServer
	}

	fields := map[string]interface{}{
		"last_cell_index": cellIndex,
		"last_cell_value": cellValue,
		"last_player":     playerID,
	}
	// 回合推进: 按 turn_order 环形找下一个未完成玩家；
	// 找不到时保持回合不变，房间即将由完成判定收尾
	if next := NextEligible(players, playerID); next != nil {
		fields["current_turn"] = next.ID
	} else {
		logCtx.Warn("SubmitCell: no eligible next player, leaving turn unchanged")
	}

	if err := s.roomRepo.UpdateFields(ctx, code, fields); err != nil {
		// 失败时不得让调用方显示虚假成功: 回合未推进、选格未生效
		logCtx.WithError(err).Error("SubmitCell: failed to persist pick")
		return ErrInternalServer
	}

	s.enqueueHistory(ctx, code, playerID, domain.ActionCellClick, domain.PickData{CellIndex: cellIndex, CellValue: cellValue})

	if event, err := domain.NewPickEvent(code, playerID, cellIndex, cellValue); err == nil {
		s.publish(ctx, event)
	} else {
		logCtx.WithError(err).Warn("SubmitCell: failed to build pick event")
	}
	s.publish(ctx, domain.ChangeEvent{Type: domain.EventRoomUpdated, RoomCode: code, At: time.Now().UTC()})

	logCtx.WithField("cell_value", cellValue).Info("Cell pick accepted")
	return nil
}

// NextEligible 按 turn_order 环形顺序返回 currentID 之后第一个未完成宾果
// 的玩家。跳过已完成者；绕完一圈仍找不到则返回 nil（回合保持不变）。
func NextEligible(players []domain.Player, currentID uint) *domain.Player {
	ordered := make([]*domain.Player, 0, len(players))
	for i := range players {
		if players[i].TurnOrder != nil {
			ordered = append(ordered, &players[i])
		}
	}
	if len(ordered) == 0 {
		return nil
	}
	sort.Slice(ordered, func(i, j int) bool {
		return *ordered[i].TurnOrder < *ordered[j].TurnOrder
	})

	currentIdx := -1
	for i, p := range ordered {
		if p.ID == currentID {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 {
		// 当前持有者已不在座（并发离开），从头找第一个未完成玩家
		for _, p := range ordered {
			if !p.BingoCompleted {
				return p
			}
		}
		return nil
	}

	for step := 1; step < len(ordered); step++ {
		candidate := ordered[(currentIdx+step)%len(ordered)]
		if !candidate.BingoCompleted {
			return candidate
		}
	}
	return nil
}

func (s *TurnService) enqueueHistory(ctx context.Context, code string, playerID uint, actionType string, data domain.PickData) {
	entry := domain.HistoryEntry{
		RoomCode:   code,
		PlayerID:   playerID,
		ActionType: actionType,
		Timestamp:  time.Now().UTC(),
	}
	if err := entry.SetData(data); err != nil {
		logrus.WithError(err).Warn("Failed to set history data")
		return
	}
	if err := s.history.EnqueueHistory(ctx, entry); err != nil {
		logrus.WithError(err).WithField("room_code", code).Warn("Failed to enqueue history entry")
	}
}

func (s *TurnService) announce(ctx context.Context, code string, text string) {
	msg := &domain.ChatMessage{RoomCode: code, Message: text}
	if err := s.chatRepo.Append(ctx, msg); err != nil {
		logrus.WithError(err).WithField("room_code", code).Warn("Failed to append system chat message")
		return
	}
	s.publish(ctx, domain.ChangeEvent{Type: domain.EventSystem, RoomCode: code, At: time.Now().UTC()})
}

func (s *TurnService) publish(ctx context.Context, event domain.ChangeEvent) {
	if err := s.feed.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_code": event.RoomCode, "event_type": event.Type,
		}).Warn("Failed to publish change event")
	}
}
