package domain

import "time"

// GameStatus 表示房间的游戏状态。
type GameStatus string

const (
	StatusWaiting  GameStatus = "waiting"  // 等待玩家加入，尚未开局
	StatusPlaying  GameStatus = "playing"  // 游戏进行中
	StatusFinished GameStatus = "finished" // 游戏已结束
)

// Room 表示一个多人宾果房间。
// 不变式: CurrentTurn 非空 当且仅当 Status = playing；
// LastCell* 字段只有在发生过至少一次选格后才有意义。
type Room struct {
	ID            uint       `gorm:"primaryKey"`                    // 房间唯一标识符 (主键)
	Code          string     `gorm:"uniqueIndex;size:191;not null"` // 4 位数字房间码，玩家口头可分享，必须唯一
	HostID        uint       `gorm:"index;not null"`                // 当前房主的玩家 ID (外键关联 Player.ID)
	Status        GameStatus `gorm:"size:20;not null;default:'waiting'"`
	CurrentTurn   *uint      `gorm:"index"`              // 当前回合玩家 ID，waiting/finished 时为 NULL
	WinCondition  int        `gorm:"not null;default:3"` // 完成多少条线判定为宾果
	LastCellIndex *int       // 最近一次选格的格子下标 (0..24)，共享对账信号
	LastCellValue *string    `gorm:"size:191"` // 最近一次选格的格子内容
	LastPlayer    *uint      // 最近一次选格的玩家 ID
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime;index"`
}

// IsJoinable 判断房间当前是否允许新玩家加入。
func (r *Room) IsJoinable() bool {
	return r.Status == StatusWaiting
}

// HasPick 判断房间是否已经发生过至少一次选格。
func (r *Room) HasPick() bool {
	return r.LastCellValue != nil && r.LastPlayer != nil
}
