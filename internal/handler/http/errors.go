package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you-joon/bingoruzzol/internal/service"
)

// HandleServiceError 把业务层哨兵错误映射为 HTTP 响应。
// 未识别的错误一律 500，不向客户端泄露内部细节。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrPlayerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidCell):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDuplicateName),
		errors.Is(err, service.ErrRoomNotJoinable),
		errors.Is(err, service.ErrRoomFull),
		errors.Is(err, service.ErrNotEnoughPlayers),
		errors.Is(err, service.ErrGameNotPlaying),
		errors.Is(err, service.ErrNotYourTurn),
		errors.Is(err, service.ErrCellAlreadyMarked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotHost),
		errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
