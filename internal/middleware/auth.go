package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"linguameet/internal/utils"
)

const (
	ContextParticipantID = "participantID"
	ContextRoomID        = "roomID"
)

// AuthMiddleware 驗證與會者的 Bearer token，並把與會者與房間 ID 放進上下文
func AuthMiddleware(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少 Authorization 標頭"})
			return
		}

		// 格式必須是 Bearer {token}
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization 格式必須為 Bearer {token}"})
			return
		}

		claims, err := tokens.ParseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "無效或過期的 token"})
			return
		}

		c.Set(ContextParticipantID, claims.ParticipantID)
		c.Set(ContextRoomID, claims.RoomID)
		c.Next()
	}
}

// RoomScope 確認 token 所屬的房間與路徑上的房間相同
func RoomScope(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRoomID) != c.Param(param) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "無權存取此房間"})
			return
		}
		c.Next()
	}
}
