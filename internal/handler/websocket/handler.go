package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/hub"
	"github.com/you-joon/bingoruzzol/internal/service"
	"github.com/you-joon/bingoruzzol/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler 是 WebSocket 入口: 校验房间令牌、升级连接、
// 建立对账会话并把上行消息分发到各业务服务。
// 同时为 Hub 实现轮询快照的 StateProvider。
type Handler struct {
	hub    *hub.Hub
	tokens *service.TokenService
	rooms  *service.RoomService
	boards *service.BoardService
	turns  *service.TurnService
	scores *service.ScoreService
	chats  *service.ChatService
}

// NewHandler 创建 WebSocket Handler。
func NewHandler(
	h *hub.Hub,
	tokens *service.TokenService,
	rooms *service.RoomService,
	boards *service.BoardService,
	turns *service.TurnService,
	scores *service.ScoreService,
	chats *service.ChatService,
) *Handler {
	return &Handler{
		hub:    h,
		tokens: tokens,
		rooms:  rooms,
		boards: boards,
		turns:  turns,
		scores: scores,
		chats:  chats,
	}
}

// Serve 处理 GET /ws/:code?token=... 的连接请求。
// 令牌是加入房间时签发的房间级会话凭证，连接身份以它为准，
// 之后所有上行消息都绑定到令牌中的玩家，不接受消息内自报身份。
func (h *Handler) Serve(c *gin.Context) {
	code := c.Param("code")
	token := c.Query("token")

	tokenCode, playerID, err := h.tokens.Validate(token)
	if err != nil || tokenCode != code {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid room token"})
		return
	}

	room, _, err := h.rooms.GetRoomState(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade connection")
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "player_id": playerID})

	// 面板随开局才生成: waiting 阶段先给空面板，
	// 开局后客户端以 sync 取板
	var (
		cells   []string
		resumed bool
	)
	if room.Status != domain.StatusWaiting {
		boardCells, isNew, err := h.boards.GetOrCreate(c.Request.Context(), code, playerID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to load board for connection")
			conn.Close()
			return
		}
		cells, resumed = boardCells, !isNew
	}

	rec := session.NewReconciler(cells)
	// 重连追赶: 把房间记录里的最近选格先套用进来，
	// 更早漏掉的选格由后续轮询快照逐步补齐
	rec.ApplyRoomSignal(room)

	client := hub.NewClient(h.hub, conn, code, playerID, rec, func(ctx context.Context, _ string, pid uint) {
		h.rooms.Heartbeat(ctx, pid)
	})
	h.hub.Register(client)
	go client.WritePump()

	h.sendHandshake(c.Request.Context(), client, cells, resumed)
	logCtx.WithField("resumed", resumed).Info("WebSocket session established")

	client.ReadPump(context.Background(), h)
}

// sendHandshake 向新连接发送面板帧与当前房间/玩家快照。
func (h *Handler) sendHandshake(ctx context.Context, client *hub.Client, cells []string, resumed bool) {
	client.Send(marshalFrame(boardFrame{
		Type:    frameBoard,
		Cells:   cells,
		Grid:    client.Reconciler().Grid(),
		Resumed: resumed,
	}))

	room, players, err := h.rooms.GetRoomState(ctx, client.RoomCode())
	if err != nil {
		return
	}
	client.Send(marshalFrame(roomFrame{Type: frameRoom, Room: newRoomView(room)}))
	client.Send(marshalFrame(playersFrame{Type: framePlayers, Players: newPlayerViews(players)}))
}

// HandleMessage 分发一条上行消息。业务拒绝只回给发送者，
// 不触碰房间状态，也不向其他连接广播任何东西。
func (h *Handler) HandleMessage(ctx context.Context, client *hub.Client, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		client.Send(marshalFrame(errorFrame{Type: frameError, Message: "malformed message"}))
		return
	}

	code := client.RoomCode()
	playerID := client.PlayerID()

	switch msg.Type {
	case msgStartGame:
		if err := h.turns.StartGame(ctx, code, playerID); err != nil {
			h.sendError(client, err)
		}

	case msgPick:
		h.handlePick(ctx, client, msg.CellIndex)

	case msgChat:
		if _, err := h.chats.Send(ctx, code, playerID, msg.Message); err != nil {
			h.sendError(client, err)
		}

	case msgSync:
		cells, isNew, err := h.boards.GetOrCreate(ctx, code, playerID)
		if err != nil {
			h.sendError(client, err)
			return
		}
		// 新生成的面板意味着上一局的板面已被清除，
		// 会话里的旧格值与标记一并作废
		if isNew {
			client.Reconciler().Reset(cells)
		}
		h.sendHandshake(ctx, client, cells, !isNew)

	case msgLeave:
		if err := h.rooms.LeaveRoom(ctx, code, playerID); err != nil {
			h.sendError(client, err)
			return
		}
		// 离开后连接没有继续存在的意义，关闭交由读协程注销
		client.Send(marshalFrame(errorFrame{Type: frameError, Message: "left room"}))

	default:
		client.Send(marshalFrame(errorFrame{Type: frameError, Message: "unknown message type"}))
	}
}

// handlePick 处理一次选格提交: 服务端仲裁通过后才标记本地网格，
// 随即重新评估连线并把进度回给提交者。
func (h *Handler) handlePick(ctx context.Context, client *hub.Client, cellIndex int) {
	code := client.RoomCode()
	playerID := client.PlayerID()
	rec := client.Reconciler()

	cells := rec.Cells()
	if cellIndex < 0 || cellIndex >= len(cells) {
		h.sendError(client, service.ErrInvalidCell)
		return
	}
	value := cells[cellIndex]

	if err := h.turns.SubmitCell(ctx, code, playerID, cellIndex, value, rec.Grid()); err != nil {
		h.sendError(client, err)
		return
	}
	rec.ApplyValue(value)

	progress, err := h.scores.ReportProgress(ctx, code, playerID, rec.Grid())
	if err != nil {
		h.sendError(client, err)
		return
	}
	client.Send(marshalFrame(progressFrame{Type: frameProgress, Progress: *progress}))
}

func (h *Handler) sendError(client *hub.Client, err error) {
	client.Send(marshalFrame(errorFrame{Type: frameError, Message: err.Error()}))
}

// OnReconciled 在连接的对账网格因他人选格发生变化后被 Hub 回调:
// 共享值模式下别人的选格也可能补完自己的连线，这里重新评估并回推进度。
func (h *Handler) OnReconciled(ctx context.Context, client *hub.Client) {
	progress, err := h.scores.ReportProgress(ctx, client.RoomCode(), client.PlayerID(), client.Reconciler().Grid())
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_code": client.RoomCode(),
			"player_id": client.PlayerID(),
		}).Warn("Progress evaluation after reconcile failed")
		return
	}
	client.Send(marshalFrame(progressFrame{Type: frameProgress, Progress: *progress}))
}

// RoomSnapshot 实现 hub.StateProvider: 生成房间快照帧。
func (h *Handler) RoomSnapshot(ctx context.Context, code string) (*domain.Room, []byte, error) {
	room, _, err := h.rooms.GetRoomState(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	return room, marshalFrame(roomFrame{Type: frameRoom, Room: newRoomView(room)}), nil
}

// PlayersSnapshot 实现 hub.StateProvider: 生成玩家快照帧。
func (h *Handler) PlayersSnapshot(ctx context.Context, code string) ([]byte, error) {
	_, players, err := h.rooms.GetRoomState(ctx, code)
	if err != nil {
		return nil, err
	}
	return marshalFrame(playersFrame{Type: framePlayers, Players: newPlayerViews(players)}), nil
}
