package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/bingo"
	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
)

// BoardService 负责玩家面板的生成与重取。
// 面板在玩家维度持久化: 重连的玩家取回同一份面板，标记进度由
// 连接侧会话按共享选格历史重放恢复。
type BoardService struct {
	boardRepo repository.BoardRepository
	poolSize  int
}

// NewBoardService 创建 BoardService 实例。poolSize 小于面板格数时取默认值。
func NewBoardService(boardRepo repository.BoardRepository, poolSize int) *BoardService {
	if boardRepo == nil {
		panic("boardRepo cannot be nil for BoardService")
	}
	if poolSize < bingo.BoardSize {
		poolSize = bingo.DefaultPoolSize
	}
	return &BoardService{boardRepo: boardRepo, poolSize: poolSize}
}

// GetOrCreate 返回玩家在房间内的面板。
// 已存在则原样返回（重连路径），否则生成一份新的随机面板并持久化。
// isNew 告诉调用方是否需要从零初始化标记网格。
func (s *BoardService) GetOrCreate(ctx context.Context, code string, playerID uint) (cells []string, isNew bool, err error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "player_id": playerID})

	board, err := s.boardRepo.FindByRoomAndPlayer(ctx, code, playerID)
	if err == nil {
		cells, parseErr := board.ParseCells()
		if parseErr == nil {
			return cells, false, nil
		}
		// 损坏的面板数据: 重新生成覆盖，而不是让玩家卡死
		logCtx.WithError(parseErr).Warn("Stored board is corrupt, regenerating")
	} else if !errors.Is(err, repository.ErrBoardNotFound) {
		logCtx.WithError(err).Error("GetOrCreate: repository error")
		return nil, false, ErrInternalServer
	}

	cells, err = bingo.Generate(s.poolSize)
	if err != nil {
		logCtx.WithError(err).Error("GetOrCreate: board generation failed")
		return nil, false, ErrInternalServer
	}

	newBoard := &domain.Board{RoomCode: code, PlayerID: playerID}
	if err := newBoard.SetCells(cells); err != nil {
		logCtx.WithError(err).Error("GetOrCreate: failed to encode cells")
		return nil, false, ErrInternalServer
	}
	if err := s.boardRepo.Upsert(ctx, newBoard); err != nil {
		logCtx.WithError(err).Error("GetOrCreate: failed to persist board")
		return nil, false, ErrInternalServer
	}

	logCtx.Info("Generated new board for player")
	return cells, true, nil
}
