package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// 历史记录的动作类型。
const (
	ActionGameStart = "game_start" // 房主开局
	ActionCellClick = "cell_click" // 回合内选格
	ActionBingo     = "bingo"      // 玩家达成宾果
	ActionGameEnd   = "game_end"   // 房间转为 finished
	ActionReset     = "reset"      // 房主重置或安全重置
)

// HistoryEntry 表示写入审计日志的一条游戏动作记录。
// 该日志只写不读：核心流程从不依赖其内容，持久化由后台任务异步完成。
type HistoryEntry struct {
	ID         uint      `gorm:"primaryKey"`
	RoomCode   string    `gorm:"index;size:191;not null"`
	PlayerID   uint      `gorm:"index;not null"`
	ActionType string    `gorm:"size:50;not null"`
	Data       string    `gorm:"type:text;not null"` // 动作数据的 JSON 字符串
	Timestamp  time.Time `gorm:"index;not null"`     // 动作发生时间
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
}

// PickData 定义 cell_click 动作的数据结构。
type PickData struct {
	CellIndex int    `json:"cell_index"`
	CellValue string `json:"cell_value"`
}

// ParseData 将 Data 字段 (JSON 字符串) 解析为 PickData 结构体。
func (h *HistoryEntry) ParseData() (PickData, error) {
	var data PickData
	if h.Data == "" || h.Data == "null" {
		if h.ActionType == ActionCellClick {
			return data, fmt.Errorf("history data is empty for action type %s", h.ActionType)
		}
		return data, nil
	}
	if err := json.Unmarshal([]byte(h.Data), &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal history data: %w", err)
	}
	return data, nil
}

// SetData 将 PickData 序列化为 JSON 字符串并写入 Data 字段。
func (h *HistoryEntry) SetData(data PickData) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal history data: %w", err)
	}
	h.Data = string(bytes)
	return nil
}
