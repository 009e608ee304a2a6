package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Board 表示一名玩家的 5x5 宾果板：25 个互不重复的标签。
// 每个 (房间, 玩家) 组合最多一行；板面从不直接展示给其他玩家。
type Board struct {
	ID        uint      `gorm:"primaryKey"`
	RoomCode  string    `gorm:"uniqueIndex:idx_board_room_player,priority:1;size:191;not null"`
	PlayerID  uint      `gorm:"uniqueIndex:idx_board_room_player,priority:2;not null"`
	Cells     string    `gorm:"type:text;not null"` // 25 个标签的 JSON 数组
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// ParseCells 将 Cells 字段 (JSON 字符串) 解析为标签切片。
func (b *Board) ParseCells() ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(b.Cells), &cells); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board cells: %w", err)
	}
	if len(cells) != BoardSize {
		return nil, fmt.Errorf("board has %d cells, want %d", len(cells), BoardSize)
	}
	return cells, nil
}

// SetCells 将标签切片序列化为 JSON 字符串并写入 Cells 字段。
func (b *Board) SetCells(cells []string) error {
	if len(cells) != BoardSize {
		return fmt.Errorf("board must have exactly %d cells, got %d", BoardSize, len(cells))
	}
	bytes, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("failed to marshal board cells: %w", err)
	}
	b.Cells = string(bytes)
	return nil
}

// BoardSize 是宾果板的格子总数 (5x5)。
const BoardSize = 25
