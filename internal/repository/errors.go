package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示尝试插入或更新的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrAlreadyCredited 表示玩家已被记入名次，本次条件更新未命中任何行。
	// 名次授予必须 at-most-once，重复评估到达阈值时以此错误拒绝第二次记名。
	ErrAlreadyCredited = errors.New("repository: player already credited")
)

// 特定资源的错误 (基于通用错误创建)
var (
	ErrRoomNotFound   = ErrNotFound
	ErrPlayerNotFound = ErrNotFound
	ErrBoardNotFound  = ErrNotFound
)
