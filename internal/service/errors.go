package service

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrInternalServer = errors.New("internal server error")

	// 加入校验错误：在任何持久化之前本地拒绝，只反馈给操作者
	ErrEmptyName       = errors.New("player name must not be empty")
	ErrDuplicateName   = errors.New("player name already taken in this room")
	ErrRoomNotJoinable = errors.New("game already started in this room")
	ErrRoomFull        = errors.New("room is full")

	// 开局/重置校验错误
	ErrNotHost          = errors.New("only the host may perform this action")
	ErrNotEnoughPlayers = errors.New("at least two players are required to start")
	ErrGameNotPlaying   = errors.New("game is not in progress")

	// 选格校验错误：fail-local，不广播、不改动房间状态
	ErrNotYourTurn       = errors.New("it is not your turn")
	ErrCellAlreadyMarked = errors.New("cell is already marked")
	ErrInvalidCell       = errors.New("cell index out of range")

	// 会话令牌错误
	ErrInvalidToken = errors.New("invalid or expired room token")

	// ErrEmptyMessage 表示聊天内容为空白。
	ErrEmptyMessage = errors.New("message cannot be empty")
)
