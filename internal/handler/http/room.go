package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/service"
)

// RoomHandler 提供房间生命周期的 REST 入口。
// 创建/加入返回房间级会话令牌，之后的房间内操作一律凭令牌识别玩家。
type RoomHandler struct {
	rooms  *service.RoomService
	chats  *service.ChatService
	tokens *service.TokenService
}

// NewRoomHandler 创建 RoomHandler。
func NewRoomHandler(rooms *service.RoomService, chats *service.ChatService, tokens *service.TokenService) *RoomHandler {
	return &RoomHandler{rooms: rooms, chats: chats, tokens: tokens}
}

// Create 处理 POST /api/rooms: 建房并让房主入座。
func (h *RoomHandler) Create(c *gin.Context) {
	var input struct {
		Name         string `json:"name"`
		WinCondition int    `json:"win_condition"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	room, host, err := h.rooms.CreateRoom(c.Request.Context(), input.Name, input.WinCondition)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	token, err := h.tokens.Issue(room.Code, host.ID)
	if err != nil {
		logrus.WithError(err).WithField("room_code", room.Code).Error("Failed to issue room token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Room created",
		"room_code":     room.Code,
		"player_id":     host.ID,
		"win_condition": room.WinCondition,
		"token":         token,
	})
}

// Join 处理 POST /api/rooms/:code/join。
func (h *RoomHandler) Join(c *gin.Context) {
	var input struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	room, player, err := h.rooms.JoinRoom(c.Request.Context(), c.Param("code"), input.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	token, err := h.tokens.Issue(room.Code, player.ID)
	if err != nil {
		logrus.WithError(err).WithField("room_code", room.Code).Error("Failed to issue room token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Joined room",
		"room_code": room.Code,
		"player_id": player.ID,
		"token":     token,
	})
}

// List 处理 GET /api/rooms: 等待中的房间列表（大厅）。
func (h *RoomHandler) List(c *gin.Context) {
	rooms, err := h.rooms.ListWaitingRooms(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// State 处理 GET /api/rooms/:code: 房间与玩家快照，HTTP 轮询兜底通道。
func (h *RoomHandler) State(c *gin.Context) {
	room, players, err := h.rooms.GetRoomState(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	playerViews := make([]gin.H, 0, len(players))
	for _, p := range players {
		playerViews = append(playerViews, gin.H{
			"id":              p.ID,
			"name":            p.Name,
			"is_host":         p.IsHost,
			"turn_order":      p.TurnOrder,
			"bingo_completed": p.BingoCompleted,
			"rank":            p.Rank,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"room": gin.H{
			"code":            room.Code,
			"status":          room.Status,
			"host_id":         room.HostID,
			"current_turn":    room.CurrentTurn,
			"win_condition":   room.WinCondition,
			"last_cell_index": room.LastCellIndex,
			"last_cell_value": room.LastCellValue,
			"last_player":     room.LastPlayer,
		},
		"players": playerViews,
	})
}

// Leave 处理 POST /api/rooms/:code/leave，玩家身份取自令牌。
func (h *RoomHandler) Leave(c *gin.Context) {
	playerID, ok := currentPlayer(c)
	if !ok {
		return
	}
	if err := h.rooms.LeaveRoom(c.Request.Context(), c.Param("code"), playerID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left room"})
}

// Reset 处理 POST /api/rooms/:code/reset: 房主把结束的对局重开回等待态。
func (h *RoomHandler) Reset(c *gin.Context) {
	playerID, ok := currentPlayer(c)
	if !ok {
		return
	}
	if err := h.rooms.ResetRoom(c.Request.Context(), c.Param("code"), playerID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Room reset"})
}

// Heartbeat 处理 POST /api/rooms/:code/heartbeat: HTTP 轮询客户端的在线信号。
func (h *RoomHandler) Heartbeat(c *gin.Context) {
	playerID, ok := currentPlayer(c)
	if !ok {
		return
	}
	if err := h.rooms.Heartbeat(c.Request.Context(), playerID); err != nil {
		HandleServiceError(c, err)
		return
	}

	// 顺带回收同房间内心跳过期的玩家: 掉线座位由任意幸存者的
	// 轮询触发清理，失败不影响本次心跳
	if _, err := h.rooms.ReapStalePlayers(c.Request.Context(), c.Param("code")); err != nil {
		logrus.WithError(err).WithField("room_code", c.Param("code")).Warn("Opportunistic stale reap failed")
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// ChatHistory 处理 GET /api/rooms/:code/chat。
func (h *RoomHandler) ChatHistory(c *gin.Context) {
	if _, ok := currentPlayer(c); !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	msgs, err := h.chats.List(c.Request.Context(), c.Param("code"), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	views := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, gin.H{
			"player_id":  m.PlayerID,
			"message":    m.Message,
			"is_system":  m.IsSystem(),
			"created_at": m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// currentPlayer 取出令牌中间件写入的玩家 ID。
func currentPlayer(c *gin.Context) (uint, bool) {
	v, exists := c.Get("player_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Player not authenticated"})
		return 0, false
	}
	id, ok := v.(uint)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Player not authenticated"})
		return 0, false
	}
	return id, true
}
