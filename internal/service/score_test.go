package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/you-joon/bingoruzzol/internal/bingo"
	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository"
	"github.com/you-joon/bingoruzzol/internal/repository/mocks"
	"github.com/you-joon/bingoruzzol/internal/service"
)

func newScoreServiceWithMocks() (*service.ScoreService, *mocks.RoomRepository, *mocks.PlayerRepository, *mocks.ChatRepository, *mocks.FeedRepository, *HistoryEnqueuerMock) {
	roomRepo := new(mocks.RoomRepository)
	playerRepo := new(mocks.PlayerRepository)
	chatRepo := new(mocks.ChatRepository)
	feedRepo := new(mocks.FeedRepository)
	history := new(HistoryEnqueuerMock)
	svc := service.NewScoreService(roomRepo, playerRepo, chatRepo, feedRepo, history)
	return svc, roomRepo, playerRepo, chatRepo, feedRepo, history
}

// fullGrid 返回全部标记的网格（12 条线全部成立）。
func fullGrid() bingo.MarkGrid {
	var grid bingo.MarkGrid
	for i := range grid {
		grid[i] = true
	}
	return grid
}

// singleRowGrid 只标记第一行（恰好 1 条线）。
func singleRowGrid() bingo.MarkGrid {
	var grid bingo.MarkGrid
	for i := 0; i < 5; i++ {
		grid[i] = true
	}
	return grid
}

func TestScoreService_ReportProgress_BelowThreshold(t *testing.T) {
	// 线数未达阈值: 只返回高亮信息，不触发任何状态变化
	svc, roomRepo, playerRepo, _, feedRepo, _ := newScoreServiceWithMocks()
	ctx := context.Background()
	turn := uint(1)
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusPlaying, WinCondition: 3, CurrentTurn: &turn}

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()

	progress, err := svc.ReportProgress(ctx, "1234", 1, singleRowGrid())

	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, 1, progress.LineCount)
	assert.False(t, progress.Completed)
	assert.Nil(t, progress.Rank)
	playerRepo.AssertNotCalled(t, "CreditBingo", mock.Anything, mock.Anything, mock.Anything)
	feedRepo.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestScoreService_ReportProgress_GameNotPlaying(t *testing.T) {
	// 终局后的残余上报: 只做只读评估
	svc, roomRepo, playerRepo, _, _, _ := newScoreServiceWithMocks()
	ctx := context.Background()
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusFinished, WinCondition: 3}

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()

	progress, err := svc.ReportProgress(ctx, "1234", 1, fullGrid())

	require.NoError(t, err)
	assert.Equal(t, 12, progress.LineCount)
	assert.False(t, progress.Completed)
	playerRepo.AssertNotCalled(t, "CreditBingo", mock.Anything, mock.Anything, mock.Anything)
}

func TestScoreService_ReportProgress_TwoPlayerFirstFinishEndsGame(t *testing.T) {
	// 两人房: 第一个完成者拿第 1 名，终局条件 completed >= max(1, N-1) = 1 立即满足
	svc, roomRepo, playerRepo, chatRepo, feedRepo, history := newScoreServiceWithMocks()
	ctx := context.Background()
	turn := uint(1)
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusPlaying, WinCondition: 3, CurrentTurn: &turn}
	winner := &domain.Player{ID: 1, RoomCode: "1234", Name: "alice", BingoCompleted: true, Rank: intPtr(1)}
	players := []domain.Player{
		{ID: 1, Name: "alice", TurnOrder: intPtr(0), BingoCompleted: true, Rank: intPtr(1)},
		{ID: 2, Name: "bob", TurnOrder: intPtr(1)},
	}

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()
	playerRepo.On("CreditBingo", ctx, "1234", uint(1)).Return(1, nil).Once()
	playerRepo.On("FindByID", ctx, uint(1)).Return(winner, nil).Once()
	playerRepo.On("FindByRoom", ctx, "1234").Return(players, nil).Once()
	playerRepo.On("CountCompleted", ctx, "1234").Return(int64(1), nil).Once()
	roomRepo.On("UpdateFields", ctx, "1234", mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["status"] == domain.StatusFinished && fields["current_turn"] == nil
	})).Return(nil).Once()
	history.On("EnqueueHistory", ctx, mock.MatchedBy(func(entry domain.HistoryEntry) bool {
		return entry.ActionType == domain.ActionBingo
	})).Return(nil).Once()
	history.On("EnqueueHistory", ctx, mock.MatchedBy(func(entry domain.HistoryEntry) bool {
		return entry.ActionType == domain.ActionGameEnd
	})).Return(nil).Once()
	chatRepo.On("Append", ctx, mock.AnythingOfType("*domain.ChatMessage")).Return(nil).Twice()
	feedRepo.On("Publish", ctx, mock.AnythingOfType("domain.ChangeEvent")).Return(nil).Maybe()

	progress, err := svc.ReportProgress(ctx, "1234", 1, fullGrid())

	require.NoError(t, err)
	assert.True(t, progress.Completed)
	require.NotNil(t, progress.Rank)
	assert.Equal(t, 1, *progress.Rank)

	roomRepo.AssertExpectations(t)
	playerRepo.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestScoreService_ReportProgress_AlreadyCredited(t *testing.T) {
	// 重复到达（重连重放、并发评估）: 返回既有名次，不重复公告
	svc, roomRepo, playerRepo, chatRepo, _, history := newScoreServiceWithMocks()
	ctx := context.Background()
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusPlaying, WinCondition: 3}
	credited := &domain.Player{ID: 1, RoomCode: "1234", Name: "alice", BingoCompleted: true, Rank: intPtr(2)}

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()
	playerRepo.On("CreditBingo", ctx, "1234", uint(1)).Return(0, repository.ErrAlreadyCredited).Once()
	playerRepo.On("FindByID", ctx, uint(1)).Return(credited, nil).Once()

	progress, err := svc.ReportProgress(ctx, "1234", 1, fullGrid())

	require.NoError(t, err)
	assert.True(t, progress.Completed)
	require.NotNil(t, progress.Rank)
	assert.Equal(t, 2, *progress.Rank, "应返回既有名次而不是重新授予")

	chatRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	history.AssertNotCalled(t, "EnqueueHistory", mock.Anything, mock.Anything)
	roomRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestScoreService_ReportProgress_HandsOffTurnWhenCreditedHolderHadIt(t *testing.T) {
	// 四人房第一个完成者（未到终局）恰好持有回合: 回合立即移交给下一个未完成玩家
	svc, roomRepo, playerRepo, chatRepo, feedRepo, history := newScoreServiceWithMocks()
	ctx := context.Background()
	turn := uint(2)
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusPlaying, WinCondition: 3, CurrentTurn: &turn}
	winner := &domain.Player{ID: 2, RoomCode: "1234", Name: "bob", BingoCompleted: true, Rank: intPtr(1)}
	players := []domain.Player{
		{ID: 1, Name: "alice", TurnOrder: intPtr(0)},
		{ID: 2, Name: "bob", TurnOrder: intPtr(1), BingoCompleted: true, Rank: intPtr(1)},
		{ID: 3, Name: "carol", TurnOrder: intPtr(2)},
		{ID: 4, Name: "dave", TurnOrder: intPtr(3)},
	}

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()
	playerRepo.On("CreditBingo", ctx, "1234", uint(2)).Return(1, nil).Once()
	playerRepo.On("FindByID", ctx, uint(2)).Return(winner, nil).Once()
	playerRepo.On("FindByRoom", ctx, "1234").Return(players, nil).Once()
	playerRepo.On("CountCompleted", ctx, "1234").Return(int64(1), nil).Once()
	// 未到终局 (1 < 3)，但完成者持有回合 → 移交给 turn_order 下一位 carol
	roomRepo.On("UpdateFields", ctx, "1234", mock.MatchedBy(func(fields map[string]interface{}) bool {
		_, hasStatus := fields["status"]
		return !hasStatus && fields["current_turn"] == uint(3)
	})).Return(nil).Once()
	history.On("EnqueueHistory", ctx, mock.MatchedBy(func(entry domain.HistoryEntry) bool {
		return entry.ActionType == domain.ActionBingo
	})).Return(nil).Once()
	chatRepo.On("Append", ctx, mock.AnythingOfType("*domain.ChatMessage")).Return(nil).Once()
	feedRepo.On("Publish", ctx, mock.AnythingOfType("domain.ChangeEvent")).Return(nil).Maybe()

	progress, err := svc.ReportProgress(ctx, "1234", 2, fullGrid())

	require.NoError(t, err)
	assert.True(t, progress.Completed)
	roomRepo.AssertExpectations(t)
	playerRepo.AssertExpectations(t)
	history.AssertExpectations(t)
}
