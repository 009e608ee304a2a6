package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/you-joon/bingoruzzol/internal/service"
)

// RoomToken 校验房间级会话令牌。
// 令牌在建房/加入时签发，把连接身份绑定到 (房间码, 玩家 ID)；
// 令牌中的房间码必须与路径参数一致，防止拿 A 房的令牌操作 B 房。
// 校验通过后在请求上下文写入 room_code 与 player_id。
func RoomToken(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			c.Abort()
			return
		}

		roomCode, playerID, err := tokens.Validate(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if pathCode := c.Param("code"); pathCode != "" && pathCode != roomCode {
			c.JSON(http.StatusForbidden, gin.H{"error": "Token does not match room"})
			c.Abort()
			return
		}

		c.Set("room_code", roomCode)
		c.Set("player_id", playerID)
		c.Next()
	}
}
