package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/bingo"
	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

// Progress 是一次连线评估的结果快照，回给连接侧做高亮渲染。
type Progress struct {
	Lines     []bingo.Line `json:"lines"`
	LineCount int          `json:"line_count"`
	Completed bool         `json:"completed"`
	Rank      *int         `json:"rank,omitempty"`
}

// ScoreService 是完成与排名引擎。
// 连线评估本身是纯函数（见 bingo 包）；这里负责阈值判定、
// 排名授予的 at-most-once 语义和终局判定。
type ScoreService struct {
	roomRepo   repository.RoomRepository
	playerRepo repository.PlayerRepository
	chatRepo   repository.ChatRepository
	feed       repository.FeedRepository
	history    HistoryEnqueuer
}

// NewScoreService 创建 ScoreService 实例。
func NewScoreService(
	roomRepo repository.RoomRepository,
	playerRepo repository.PlayerRepository,
	chatRepo repository.ChatRepository,
	feed repository.FeedRepository,
	history HistoryEnqueuer,
) *ScoreService {
	if roomRepo == nil || playerRepo == nil || chatRepo == nil || feed == nil || history == nil {
		panic("all dependencies must be non-nil for ScoreService")
	}
	return &ScoreService{
		roomRepo:   roomRepo,
		playerRepo: playerRepo,
		chatRepo:   chatRepo,
		feed:       feed,
		history:    history,
	}
}

// ReportProgress 在玩家网格变化后重新评估连线。
// 低于胜利阈值时只返回高亮信息，不触发任何状态变化。
// 达到阈值时走排名授予: 数据库侧的条件更新保证同一玩家至多记一次名次，
// 重复到达（重连重放、并发评估）安静降级为只读快照。
func (s *ScoreService) ReportProgress(ctx context.Context, code string, playerID uint, grid bingo.MarkGrid) (*Progress, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "player_id": playerID})

	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("ReportProgress: repository error")
		return nil, ErrInternalServer
	}

	lines, count := bingo.Evaluate(grid)
	progress := &Progress{Lines: lines, LineCount: count}

	// 非进行中的房间只做只读评估（终局后的残余上报）
	if room.Status != domain.StatusPlaying || count < room.WinCondition {
		return progress, nil
	}

	rank, err := s.playerRepo.CreditBingo(ctx, code, playerID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyCredited) {
			// 已记过名次: 返回既有事实，不重复公告
			if p, ferr := s.playerRepo.FindByID(ctx, playerID); ferr == nil {
				progress.Completed = p.BingoCompleted
				progress.Rank = p.Rank
			}
			return progress, nil
		}
		logCtx.WithError(err).Error("ReportProgress: failed to credit bingo")
		return nil, ErrInternalServer
	}

	progress.Completed = true
	progress.Rank = &rank
	logCtx.WithField("rank", rank).Info("Player completed bingo")

	player, err := s.playerRepo.FindByID(ctx, playerID)
	name := "A player"
	if err == nil {
		name = player.Name
	}
	s.announce(ctx, code, fmt.Sprintf("%s finished in place %d!", name, rank))
	s.enqueueHistory(ctx, code, playerID, domain.ActionBingo, domain.PickData{})
	s.publish(ctx, domain.ChangeEvent{Type: domain.EventPlayersChanged, RoomCode: code, At: time.Now().UTC()})

	if err := s.afterCredit(ctx, code, playerID, room); err != nil {
		logCtx.WithError(err).Error("ReportProgress: post-credit transition failed")
	}
	return progress, nil
}

// afterCredit 处理授予名次后的两件事: 终局判定，以及
// 完成者恰好持有回合时的回合移交。
func (s *ScoreService) afterCredit(ctx context.Context, code string, playerID uint, room *domain.Room) error {
	players, err := s.playerRepo.FindByRoom(ctx, code)
	if err != nil {
		return err
	}
	completed, err := s.playerRepo.CountCompleted(ctx, code)
	if err != nil {
		return err
	}

	// 终局条件: 完成人数 ≥ max(1, 总人数-1)。
	// 两人房第一个完成即终局；最后一名无需陪跑到自己也完成。
	threshold := int64(len(players)) - 1
	if threshold < 1 {
		threshold = 1
	}
	if completed >= threshold {
		fields := map[string]interface{}{
			"status":       domain.StatusFinished,
			"current_turn": nil,
		}
		if err := s.roomRepo.UpdateFields(ctx, code, fields); err != nil {
			return err
		}
		s.enqueueHistory(ctx, code, playerID, domain.ActionGameEnd, domain.PickData{})
		s.announce(ctx, code, "Game over! Check the final ranking.")
		s.publish(ctx, domain.ChangeEvent{Type: domain.EventRoomUpdated, RoomCode: code, At: time.Now().UTC()})
		logrus.WithFields(logrus.Fields{
			"room_code": code, "completed": completed, "players": len(players),
		}).Info("Game finished")
		return nil
	}

	// 完成者持有回合时立即移交，不让已完成玩家占着回合
	if room.CurrentTurn != nil && *room.CurrentTurn == playerID {
		if next := NextEligible(players, playerID); next != nil {
			fields := map[string]interface{}{"current_turn": next.ID}
			if err := s.roomRepo.UpdateFields(ctx, code, fields); err != nil {
				return err
			}
			s.publish(ctx, domain.ChangeEvent{Type: domain.EventRoomUpdated, RoomCode: code, At: time.Now().UTC()})
		}
	}
	return nil
}

func (s *ScoreService) enqueueHistory(ctx context.Context, code string, playerID uint, actionType string, data domain.PickData) {
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

func (s *ScoreService) announce(ctx context.Context, code string, text string) {
	msg := &domain.ChatMessage{RoomCode: code, Message: text}
	if err := s.chatRepo.Append(ctx, msg); err != nil {
		logrus.WithError(err).WithField("room_code", code).Warn("Failed to append system chat message")
		return
	}
	s.publish(ctx, domain.ChangeEvent{Type: domain.EventSystem, RoomCode: code, At: time.Now().UTC()})
}

func (s *ScoreService) publish(ctx context.Context, event domain.ChangeEvent) {
	if err := s.feed.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_code": event.RoomCode, "event_type": event.Type,
		}).Warn("Failed to publish change event")
	}
}
