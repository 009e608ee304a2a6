package domain

import "time"

// Player 表示房间内的一名玩家（仅在一个房间的生命周期内存在）。
// 不变式: 同一房间内至多一个 IsHost 为 true 的在座玩家；
// 开局后所有在座玩家的 TurnOrder 是 0..N-1 的一个紧密排列；
// Rank 一旦写入不再变更，且同房间内严格递增、从 1 开始、无空洞。
type Player struct {
	ID             uint      `gorm:"primaryKey"`
	RoomCode       string    `gorm:"index:idx_room_player,priority:1;size:191;not null"` // 所属房间码
	Name           string    `gorm:"size:191;not null"`                                  // 展示名，房间内唯一（区分大小写）
	IsHost         bool      `gorm:"not null;default:false"`
	TurnOrder      *int      // 开局时随机分配的回合顺序，未开局为 NULL
	BingoCompleted bool      `gorm:"not null;default:false"` // 是否已达成宾果（至多置位一次）
	Rank           *int      // 完成名次，1 起始，未完成为 NULL
	LastSeenAt     time.Time `gorm:"index"` // 心跳时间戳，供其他参与者判断掉线并回收
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// Finished 判断玩家是否已被记入名次。
func (p *Player) Finished() bool {
	return p.BingoCompleted
}
