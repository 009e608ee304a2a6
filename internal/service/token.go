package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenService 签发并校验房间会话令牌。
// 令牌只绑定 (房间码, 玩家 ID)，不是身份系统：它让服务端能够权威地
// 确认一条连接背后是哪个在座玩家，回合归属检查因此不依赖客户端自报。
type TokenService struct {
	secret []byte
	expiry time.Duration
}

// roomClaims 是房间会话令牌的载荷
type roomClaims struct {
	RoomCode string `json:"room_code"`
	PlayerID uint   `json:"player_id"`
	jwt.RegisteredClaims
}

// NewTokenService 创建 TokenService 实例
func NewTokenService(secret string, expiryHours int) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret cannot be empty")
	}
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &TokenService{
		secret: []byte(secret),
		expiry: time.Duration(expiryHours) * time.Hour,
	}, nil
}

// Issue 为加入房间的玩家签发一枚会话令牌
func (s *TokenService) Issue(roomCode string, playerID uint) (string, error) {
	now := time.Now()
	claims := roomClaims{
		RoomCode: roomCode,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign room token: %w", err)
	}
	return signed, nil
}

// Validate 校验令牌并返回其绑定的房间码和玩家 ID
func (s *TokenService) Validate(tokenStr string) (roomCode string, playerID uint, err error) {
	claims := &roomClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", 0, ErrInvalidToken
	}
	return claims.RoomCode, claims.PlayerID, nil
}
