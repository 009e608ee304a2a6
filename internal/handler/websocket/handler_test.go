package websocket_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/you-joon/bingoruzzol/internal/domain"
	wshandler "github.com/you-joon/bingoruzzol/internal/handler/websocket"
	"github.com/you-joon/bingoruzzol/internal/hub"
	"github.com/you-joon/bingoruzzol/internal/repository"
	"github.com/you-joon/bingoruzzol/internal/repository/mocks"
	"github.com/you-joon/bingoruzzol/internal/service"
	"github.com/you-joon/bingoruzzol/internal/session"
)

type historyStub struct {
	mock.Mock
}

func (m *historyStub) EnqueueHistory(ctx context.Context, entry domain.HistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type wsMocks struct {
	roomRepo    *mocks.RoomRepository
	playerRepo  *mocks.PlayerRepository
	boardRepo   *mocks.BoardRepository
	chatRepo    *mocks.ChatRepository
	historyRepo *mocks.HistoryRepository
	feedRepo    *mocks.FeedRepository
	tokens      *service.TokenService
}

func newWSHandler(t *testing.T, h *hub.Hub) (*wshandler.Handler, *wsMocks) {
	t.Helper()
	m := &wsMocks{
		roomRepo:    new(mocks.RoomRepository),
		playerRepo:  new(mocks.PlayerRepository),
		boardRepo:   new(mocks.BoardRepository),
		chatRepo:    new(mocks.ChatRepository),
		historyRepo: new(mocks.HistoryRepository),
		feedRepo:    new(mocks.FeedRepository),
	}
	tokens, err := service.NewTokenService("test-secret", 1)
	require.NoError(t, err)
	m.tokens = tokens

	cfg := service.RoomConfig{DefaultWinCondition: 3, MaxPlayers: 4, HeartbeatTTL: time.Minute}
	rooms := service.NewRoomService(m.roomRepo, m.playerRepo, m.boardRepo, m.chatRepo, m.historyRepo, m.feedRepo, cfg)
	boards := service.NewBoardService(m.boardRepo, 25)
	history := new(historyStub)
	history.On("EnqueueHistory", mock.Anything, mock.Anything).Return(nil).Maybe()
	turns := service.NewTurnService(m.roomRepo, m.playerRepo, m.chatRepo, m.feedRepo, history, service.FirstMoverHost)
	scores := service.NewScoreService(m.roomRepo, m.playerRepo, m.chatRepo, m.feedRepo, history)
	chats := service.NewChatService(m.chatRepo, m.playerRepo, m.feedRepo)

	return wshandler.NewHandler(h, tokens, rooms, boards, turns, scores, chats), m
}

func staleCells() []string {
	cells := make([]string, 25)
	for i := range cells {
		cells[i] = "old-" + strconv.Itoa(i+1)
	}
	return cells
}

func TestHandleSyncResetsSessionAfterBoardRegenerated(t *testing.T) {
	hubInstance := hub.NewHub(new(mocks.FeedRepository), nil, time.Minute, time.Minute)
	handler, m := newWSHandler(t, hubInstance)

	// 上一局的面板与两处标记还留在会话里
	rec := session.NewReconciler(staleCells())
	rec.ApplyValue("old-1")
	rec.ApplyValue("old-2")
	client := hub.NewClient(hubInstance, nil, "1234", 1, rec, nil)

	// 服务端已随重置清掉旧面板: sync 触发重新生成
	m.boardRepo.On("FindByRoomAndPlayer", mock.Anything, "1234", uint(1)).
		Return(nil, repository.ErrBoardNotFound).Once()
	m.boardRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.Board")).Return(nil).Once()
	waiting := &domain.Room{ID: 1, Code: "1234", HostID: 1, Status: domain.StatusWaiting}
	m.roomRepo.On("FindByCode", mock.Anything, "1234").Return(waiting, nil)
	m.playerRepo.On("FindByRoom", mock.Anything, "1234").
		Return([]domain.Player{{ID: 1, RoomCode: "1234", Name: "alice", IsHost: true}}, nil)

	handler.HandleMessage(context.Background(), client, []byte(`{"type":"sync"}`))

	assert.NotContains(t, rec.Cells(), "old-1", "sync 后旧面板不得残留在会话里")
	for i := 0; i < 25; i++ {
		assert.Falsef(t, rec.Marked(i), "面板重新生成后格子 %d 的标记必须清空", i)
	}
	m.boardRepo.AssertExpectations(t)
}

func TestHandleSyncKeepsMarksWhenBoardUnchanged(t *testing.T) {
	hubInstance := hub.NewHub(new(mocks.FeedRepository), nil, time.Minute, time.Minute)
	handler, m := newWSHandler(t, hubInstance)

	cells := staleCells()
	rec := session.NewReconciler(cells)
	rec.ApplyValue("old-4")
	client := hub.NewClient(hubInstance, nil, "1234", 1, rec, nil)

	stored := &domain.Board{RoomCode: "1234", PlayerID: 1}
	require.NoError(t, stored.SetCells(cells))
	m.boardRepo.On("FindByRoomAndPlayer", mock.Anything, "1234", uint(1)).Return(stored, nil).Once()
	turn := uint(1)
	playing := &domain.Room{ID: 1, Code: "1234", HostID: 1, Status: domain.StatusPlaying, CurrentTurn: &turn}
	m.roomRepo.On("FindByCode", mock.Anything, "1234").Return(playing, nil)
	m.playerRepo.On("FindByRoom", mock.Anything, "1234").
		Return([]domain.Player{{ID: 1, RoomCode: "1234", Name: "alice", IsHost: true}}, nil)

	handler.HandleMessage(context.Background(), client, []byte(`{"type":"sync"}`))

	// 对局中的重新同步取回同一份面板，已有标记原样保留
	assert.True(t, rec.Marked(3), "面板未变时 sync 不得清空已有标记")
	assert.Equal(t, "old-1", rec.Cells()[0])
	m.boardRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestServeWaitingRoomDefersBoardCreation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hubFeed := new(mocks.FeedRepository)
	hubFeed.On("Subscribe", mock.Anything, "1234").Return(nil, errors.New("feed offline")).Once()
	hubInstance := hub.NewHub(hubFeed, nil, time.Minute, time.Minute)
	handler, m := newWSHandler(t, hubInstance)
	hubInstance.SetStateProvider(handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hubInstance.Run(ctx)

	waiting := &domain.Room{ID: 1, Code: "1234", HostID: 1, Status: domain.StatusWaiting}
	m.roomRepo.On("FindByCode", mock.Anything, "1234").Return(waiting, nil)
	m.playerRepo.On("FindByRoom", mock.Anything, "1234").
		Return([]domain.Player{{ID: 1, RoomCode: "1234", Name: "alice", IsHost: true}}, nil)
	m.playerRepo.On("TouchHeartbeat", mock.Anything, uint(1), mock.AnythingOfType("time.Time")).Return(nil).Maybe()

	router := gin.New()
	router.GET("/ws/:code", handler.Serve)
	srv := httptest.NewServer(router)
	defer srv.Close()

	token, err := m.tokens.Issue("1234", 1)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/1234?token=" + token
	conn, resp, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "waiting 状态下应能正常建立连接")
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"type":"board"`, "握手首帧应为面板帧")

	// 面板随开局生成: waiting 阶段连接不触碰面板存储
	m.boardRepo.AssertNotCalled(t, "FindByRoomAndPlayer", mock.Anything, mock.Anything, mock.Anything)
	m.boardRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}
