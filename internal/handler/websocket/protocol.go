package websocket

import (
	"encoding/json"

	"github.com/you-joon/bingoruzzol/internal/bingo"
	"github.com/you-joon/bingoruzzol/internal/domain"
	"github.com/you-joon/bingoruzzol/internal/service"
)

// 上行消息类型。
const (
	msgStartGame = "start_game" // 房主开局
	msgPick      = "pick"       // 回合内选格 {cell_index}
	msgChat      = "chat"       // 聊天 {message}
	msgSync      = "sync"       // 请求重发面板与快照（重连对账）
	msgLeave     = "leave"      // 主动离开房间
)

// 下行帧类型。变更流事件帧直接使用 domain.EventType 的值，
// 这里的常量覆盖握手与快照帧，两组类型名互不重叠。
const (
	frameBoard    = "board"
	frameRoom     = "room_state"
	framePlayers  = "players"
	frameProgress = "progress"
	frameError    = "error"
)

// inbound 是客户端上行消息的统一信封。
type inbound struct {
	Type      string `json:"type"`
	CellIndex int    `json:"cell_index"`
	Message   string `json:"message"`
}

type boardFrame struct {
	Type    string         `json:"type"`
	Cells   []string       `json:"cells"`
	Grid    bingo.MarkGrid `json:"grid"`
	Resumed bool           `json:"resumed"`
}

// roomView 是房间记录的下行视图。
type roomView struct {
	Code          string  `json:"code"`
	Status        string  `json:"status"`
	HostID        uint    `json:"host_id"`
	CurrentTurn   *uint   `json:"current_turn,omitempty"`
	WinCondition  int     `json:"win_condition"`
	LastCellIndex *int    `json:"last_cell_index,omitempty"`
	LastCellValue *string `json:"last_cell_value,omitempty"`
	LastPlayer    *uint   `json:"last_player,omitempty"`
}

type roomFrame struct {
	Type string   `json:"type"`
	Room roomView `json:"room"`
}

// playerView 是玩家记录的下行视图。
type playerView struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	IsHost         bool   `json:"is_host"`
	TurnOrder      *int   `json:"turn_order,omitempty"`
	BingoCompleted bool   `json:"bingo_completed"`
	Rank           *int   `json:"rank,omitempty"`
}

type playersFrame struct {
	Type    string       `json:"type"`
	Players []playerView `json:"players"`
}

type progressFrame struct {
	Type     string           `json:"type"`
	Progress service.Progress `json:"progress"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newRoomView(room *domain.Room) roomView {
	return roomView{
		Code:          room.Code,
		Status:        string(room.Status),
		HostID:        room.HostID,
		CurrentTurn:   room.CurrentTurn,
		WinCondition:  room.WinCondition,
		LastCellIndex: room.LastCellIndex,
		LastCellValue: room.LastCellValue,
		LastPlayer:    room.LastPlayer,
	}
}

func newPlayerViews(players []domain.Player) []playerView {
	views := make([]playerView, 0, len(players))
	for _, p := range players {
		views = append(views, playerView{
			ID:             p.ID,
			Name:           p.Name,
			IsHost:         p.IsHost,
			TurnOrder:      p.TurnOrder,
			BingoCompleted: p.BingoCompleted,
			Rank:           p.Rank,
		})
	}
	return views
}

func marshalFrame(v interface{}) []byte {
	frame, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return frame
}
