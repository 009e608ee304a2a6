package domain

import "time"

// ChatMessage 表示房间内的一条聊天消息。
// PlayerID 为 NULL 表示系统消息，或者作者已离开房间。
// 读取时按 CreatedAt 升序排列。
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey"`
	RoomCode  string    `gorm:"index;size:191;not null"`
	PlayerID  *uint     `gorm:"index"` // 作者离开后置 NULL，消息本身保留
	Message   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// IsSystem 判断消息是否为系统公告（无作者）。
func (m *ChatMessage) IsSystem() bool {
	return m.PlayerID == nil
}
