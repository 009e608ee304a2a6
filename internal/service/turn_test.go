package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/you-joon/bingoruzzol/internal/bingo"
	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/repository/mocks"
	"github.com/you-joon/bingoruzzol/internal/service"
)

// HistoryEnqueuerMock 是 service.HistoryEnqueuer 的 mock 实现。
type HistoryEnqueuerMock struct {
	mock.Mock
}

func (m *HistoryEnqueuerMock) EnqueueHistory(ctx context.Context, entry domain.HistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func intPtr(v int) *int { return &v }

func newTurnServiceWithMocks(policy service.FirstMoverPolicy) (*service.TurnService, *mocks.RoomRepository, *mocks.PlayerRepository, *mocks.ChatRepository, *mocks.FeedRepository, *HistoryEnqueuerMock) {
	roomRepo := new(mocks.RoomRepository)
	playerRepo := new(mocks.PlayerRepository)
	chatRepo := new(mocks.ChatRepository)
	feedRepo := new(mocks.FeedRepository)
	history := new(HistoryEnqueuerMock)
	svc := service.NewTurnService(roomRepo, playerRepo, chatRepo, feedRepo, history, policy)
	return svc, roomRepo, playerRepo, chatRepo, feedRepo, history
}

// --- 测试 StartGame ---

func TestTurnService_StartGame_NotHost(t *testing.T) {
	svc, roomRepo, playerRepo, _, _, _ := newTurnServiceWithMocks(service.FirstMoverHost)
	ctx := context.Background()
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusWaiting, HostID: 1}

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()

	err := svc.StartGame(ctx, "1234", 2)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotHost))
	playerRepo.AssertNotCalled(t, "AssignTurnOrders", mock.Anything, mock.Anything)
}

func TestTurnService_StartGame_NotEnoughPlayers(t *testing.T) {
	// 单人房不能开局
	svc, roomRepo, playerRepo, _, _, _ := newTurnServiceWithMocks(service.FirstMoverHost)
	ctx := context.Background()
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusWaiting, HostID: 1}

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()
	playerRepo.On("FindByRoom", ctx, "1234").Return([]domain.Player{{ID: 1, IsHost: true}}, nil).Once()

	err := svc.StartGame(ctx, "1234", 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotEnoughPlayers))
	playerRepo.AssertNotCalled(t, "AssignTurnOrders", mock.Anything, mock.Anything)
	roomRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestTurnService_StartGame_AlreadyPlaying(t *testing.T) {
	svc, roomRepo, _, _, _, _ := newTurnServiceWithMocks(service.FirstMoverHost)
	ctx := context.Background()
	turn := uint(1)
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusPlaying, HostID: 1, CurrentTurn: &turn}

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()

	err := svc.StartGame(ctx, "1234", 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRoomNotJoinable))
}

func TestTurnService_StartGame_Success_HostMovesFirst(t *testing.T) {
	// Arrange
	svc, roomRepo, playerRepo, chatRepo, feedRepo, history := newTurnServiceWithMocks(service.FirstMoverHost)
	ctx := context.Background()
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusWaiting, HostID: 1}
	players := []domain.Player{
		{ID: 1, Name: "alice", IsHost: true},
		{ID: 2, Name: "bob"},
		{ID: 3, Name: "carol"},
	}

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()
	playerRepo.On("FindByRoom", ctx, "1234").Return(players, nil).Once()
	// 回合顺序应是 0..N-1 的紧密排列，覆盖全部在座玩家
	playerRepo.On("AssignTurnOrders", ctx, mock.MatchedBy(func(orders map[uint]int) bool {
		if len(orders) != 3 {
			return false
		}
		seen := make(map[int]bool)
		for _, ord := range orders {
			seen[ord] = true
		}
		return seen[0] && seen[1] && seen[2]
	})).Return(nil).Once()
	roomRepo.On("UpdateFields", ctx, "1234", mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["status"] == domain.StatusPlaying && fields["current_turn"] == uint(1)
	})).Return(nil).Once()
	history.On("EnqueueHistory", ctx, mock.MatchedBy(func(entry domain.HistoryEntry) bool {
		return entry.ActionType == domain.ActionGameStart
	})).Return(nil).Once()
	chatRepo.On("Append", ctx, mock.AnythingOfType("*domain.ChatMessage")).Return(nil).Once()
	feedRepo.On("Publish", ctx, mock.AnythingOfType("domain.ChangeEvent")).Return(nil).Maybe()

	// Act
	err := svc.StartGame(ctx, "1234", 1)

	// Assert
	require.NoError(t, err)
	roomRepo.AssertExpectations(t)
	playerRepo.AssertExpectations(t)
	history.AssertExpectations(t)
}

// --- 测试 SubmitCell ---

func TestTurnService_SubmitCell_InvalidCellIndex(t *testing.T) {
	svc, roomRepo, _, _, _, _ := newTurnServiceWithMocks(service.FirstMoverHost)
	var grid bingo.MarkGrid

	err := svc.SubmitCell(context.Background(), "1234", 1, bingo.BoardSize, "7", grid)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidCell))
	roomRepo.AssertNotCalled(t, "FindByCode", mock.Anything, mock.Anything)
}

func TestTurnService_SubmitCell_CellAlreadyMarked(t *testing.T) {
	// 重复点击同一格是本地失败的空操作，不触达任何仓储
	svc, roomRepo, _, _, _, _ := newTurnServiceWithMocks(service.FirstMoverHost)
	var grid bingo.MarkGrid
	grid[4] = true

	err := svc.SubmitCell(context.Background(), "1234", 1, 4, "7", grid)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrCellAlreadyMarked))
	roomRepo.AssertNotCalled(t, "FindByCode", mock.Anything, mock.Anything)
}

func TestTurnService_SubmitCell_NotYourTurn(t *testing.T) {
	// 不持有回合的提交被拒绝，房间状态不变、无任何广播
	svc, roomRepo, _, _, feedRepo, history := newTurnServiceWithMocks(service.FirstMoverHost)
	ctx := context.Background()
	turn := uint(2)
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusPlaying, HostID: 1, CurrentTurn: &turn}
	var grid bingo.MarkGrid

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()

	err := svc.SubmitCell(ctx, "1234", 1, 0, "3", grid)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrNotYourTurn))
	roomRepo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	feedRepo.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	history.AssertNotCalled(t, "EnqueueHistory", mock.Anything, mock.Anything)
}

func TestTurnService_SubmitCell_GameNotPlaying(t *testing.T) {
	svc, roomRepo, _, _, _, _ := newTurnServiceWithMocks(service.FirstMoverHost)
	ctx := context.Background()
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusWaiting, HostID: 1}
	var grid bingo.MarkGrid

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()

	err := svc.SubmitCell(ctx, "1234", 1, 0, "3", grid)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrGameNotPlaying))
}

func TestTurnService_SubmitCell_Success_AdvancesTurn(t *testing.T) {
	// 接受提交: 持久化最近选格并把回合推进到 turn_order 的下一位
	svc, roomRepo, playerRepo, _, feedRepo, history := newTurnServiceWithMocks(service.FirstMoverHost)
	ctx := context.Background()
	turn := uint(1)
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusPlaying, HostID: 1, CurrentTurn: &turn}
	players := []domain.Player{
		{ID: 1, Name: "alice", TurnOrder: intPtr(0)},
		{ID: 2, Name: "bob", TurnOrder: intPtr(1)},
		{ID: 3, Name: "carol", TurnOrder: intPtr(2)},
	}
	var grid bingo.MarkGrid

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()
	playerRepo.On("FindByRoom", ctx, "1234").Return(players, nil).Once()
	roomRepo.On("UpdateFields", ctx, "1234", mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["last_cell_index"] == 7 &&
			fields["last_cell_value"] == "13" &&
			fields["last_player"] == uint(1) &&
			fields["current_turn"] == uint(2)
	})).Return(nil).Once()
	history.On("EnqueueHistory", ctx, mock.MatchedBy(func(entry domain.HistoryEntry) bool {
		return entry.ActionType == domain.ActionCellClick && entry.PlayerID == uint(1)
	})).Return(nil).Once()
	feedRepo.On("Publish", ctx, mock.AnythingOfType("domain.ChangeEvent")).Return(nil).Maybe()

	err := svc.SubmitCell(ctx, "1234", 1, 7, "13", grid)

	require.NoError(t, err)
	roomRepo.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestTurnService_SubmitCell_SkipsCompletedPlayers(t *testing.T) {
	// 下一位已完成宾果 → 回合越过他落到再下一位
	svc, roomRepo, playerRepo, _, feedRepo, history := newTurnServiceWithMocks(service.FirstMoverHost)
	ctx := context.Background()
	turn := uint(1)
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusPlaying, HostID: 1, CurrentTurn: &turn}
	players := []domain.Player{
		{ID: 1, Name: "alice", TurnOrder: intPtr(0)},
		{ID: 2, Name: "bob", TurnOrder: intPtr(1), BingoCompleted: true, Rank: intPtr(1)},
		{ID: 3, Name: "carol", TurnOrder: intPtr(2)},
	}
	var grid bingo.MarkGrid

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()
	playerRepo.On("FindByRoom", ctx, "1234").Return(players, nil).Once()
	roomRepo.On("UpdateFields", ctx, "1234", mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["current_turn"] == uint(3)
	})).Return(nil).Once()
	history.On("EnqueueHistory", ctx, mock.Anything).Return(nil).Once()
	feedRepo.On("Publish", ctx, mock.AnythingOfType("domain.ChangeEvent")).Return(nil).Maybe()

	err := svc.SubmitCell(ctx, "1234", 1, 0, "3", grid)

	require.NoError(t, err)
	roomRepo.AssertExpectations(t)
}

func TestTurnService_SubmitCell_NoEligibleNext_TurnUnchanged(t *testing.T) {
	// 其余玩家全部完成 → 回合保持在提交者手上
	svc, roomRepo, playerRepo, _, feedRepo, history := newTurnServiceWithMocks(service.FirstMoverHost)
	ctx := context.Background()
	turn := uint(1)
	room := &domain.Room{ID: 1, Code: "1234", Status: domain.StatusPlaying, HostID: 1, CurrentTurn: &turn}
	players := []domain.Player{
		{ID: 1, Name: "alice", TurnOrder: intPtr(0)},
		{ID: 2, Name: "bob", TurnOrder: intPtr(1), BingoCompleted: true, Rank: intPtr(1)},
	}
	var grid bingo.MarkGrid

	roomRepo.On("FindByCode", ctx, "1234").Return(room, nil).Once()
	playerRepo.On("FindByRoom", ctx, "1234").Return(players, nil).Once()
	roomRepo.On("UpdateFields", ctx, "1234", mock.MatchedBy(func(fields map[string]interface{}) bool {
		_, hasTurn := fields["current_turn"]
		return !hasTurn
	})).Return(nil).Once()
	history.On("EnqueueHistory", ctx, mock.Anything).Return(nil).Once()
	feedRepo.On("Publish", ctx, mock.AnythingOfType("domain.ChangeEvent")).Return(nil).Maybe()

	err := svc.SubmitCell(ctx, "1234", 1, 0, "3", grid)

	require.NoError(t, err)
	roomRepo.AssertExpectations(t)
}

// --- 测试 NextEligible ---

func TestNextEligible_CyclicOrder(t *testing.T) {
	players := []domain.Player{
		{ID: 10, TurnOrder: intPtr(2)},
		{ID: 20, TurnOrder: intPtr(0)},
		{ID: 30, TurnOrder: intPtr(1)},
	}

	// 按 turn_order 的环形顺序: 20(0) → 30(1) → 10(2) → 20(0)
	next := service.NextEligible(players, 20)
	require.NotNil(t, next)
	assert.Equal(t, uint(30), next.ID)

	next = service.NextEligible(players, 10)
	require.NotNil(t, next)
	assert.Equal(t, uint(20), next.ID, "末位之后应回绕到首位")
}

func TestNextEligible_SkipsCompleted(t *testing.T) {
	players := []domain.Player{
		{ID: 1, TurnOrder: intPtr(0)},
		{ID: 2, TurnOrder: intPtr(1), BingoCompleted: true},
		{ID: 3, TurnOrder: intPtr(2)},
	}

	next := service.NextEligible(players, 1)

	require.NotNil(t, next)
	assert.Equal(t, uint(3), next.ID, "已完成的玩家应被跳过")
}

func TestNextEligible_CurrentAbsent(t *testing.T) {
	// 当前持有者并发离开后不在列表里: 从头找第一个未完成玩家
	players := []domain.Player{
		{ID: 1, TurnOrder: intPtr(0), BingoCompleted: true},
		{ID: 2, TurnOrder: intPtr(1)},
	}

	next := service.NextEligible(players, 99)

	require.NotNil(t, next)
	assert.Equal(t, uint(2), next.ID)
}

func TestNextEligible_NoneEligible(t *testing.T) {
	players := []domain.Player{
		{ID: 1, TurnOrder: intPtr(0)},
		{ID: 2, TurnOrder: intPtr(1), BingoCompleted: true},
	}

	assert.Nil(t, service.NextEligible(players, 1), "其余玩家全部完成时应返回 nil")
}

func TestNextEligible_NoTurnOrders(t *testing.T) {
	// 未开局（无人有 turn_order）时没有可推进的对象
	players := []domain.Player{{ID: 1}, {ID: 2}}

	assert.Nil(t, service.NextEligible(players, 1))
}
