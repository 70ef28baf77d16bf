package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"linguameet/internal/service"
)

// respondError 將服務層錯誤轉為 HTTP 狀態碼
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
	case errors.Is(err, service.ErrRoomInactive):
		c.JSON(http.StatusGone, gin.H{"error": "房間已停用"})
	case errors.Is(err, service.ErrParticipantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "與會者不存在"})
	case errors.Is(err, service.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "對話紀錄不存在"})
	case errors.Is(err, service.ErrAudioNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "音訊檔案不存在"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "無權存取此對話紀錄"})
	case errors.Is(err, service.ErrUnsupportedLanguage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支援的語言"})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "伺服器內部錯誤"})
	}
}
