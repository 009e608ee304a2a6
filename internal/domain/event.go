package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType 标识变更通知的种类。
type EventType string

const (
	EventRoomUpdated    EventType = "room_updated"    // 房间记录发生变更（状态/回合/最近选格等）
	EventPlayersChanged EventType = "players_changed" // 玩家集合或玩家字段发生变更
	EventPick           EventType = "pick"            // 一次被接受的选格，携带 PickPayload
	EventChat           EventType = "chat"            // 新聊天消息
	EventSystem         EventType = "system"          // 系统公告（宾果达成、游戏结束等）
)

// ChangeEvent 是变更通知流上的一条事件。
// 投递语义为 at-least-once、按房间提交顺序；消费端必须幂等处理，
// 同一逻辑状态可能经推送和轮询两条通道各到达一次。
type ChangeEvent struct {
	Type     EventType       `json:"type"`
	RoomCode string          `json:"room_code"`
	PlayerID *uint           `json:"player_id,omitempty"` // 事件来源玩家，系统事件为空
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       time.Time       `json:"at"`
}

// PickPayload 是 EventPick 事件的负载：所有客户端据此对账自己的板面。
type PickPayload struct {
	CellIndex int    `json:"cell_index"`
	CellValue string `json:"cell_value"`
	PlayerID  uint   `json:"player_id"`
}

// NewPickEvent 构造一条选格事件。
func NewPickEvent(roomCode string, playerID uint, cellIndex int, cellValue string) (ChangeEvent, error) {
	payload, err := json.Marshal(PickPayload{CellIndex: cellIndex, CellValue: cellValue, PlayerID: playerID})
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("failed to marshal pick payload: %w", err)
	}
	return ChangeEvent{
		Type:     EventPick,
		RoomCode: roomCode,
		PlayerID: &playerID,
		Payload:  payload,
		At:       time.Now().UTC(),
	}, nil
}

// ParsePickPayload 解析 EventPick 事件的负载。
func (e *ChangeEvent) ParsePickPayload() (PickPayload, error) {
	var p PickPayload
	if e.Type != EventPick {
		return p, fmt.Errorf("event type %s carries no pick payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal pick payload: %w", err)
	}
	return p, nil
}
