package handlers

import (
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"

	"linguameet/internal/capability"
	"linguameet/internal/middleware"
	"linguameet/internal/service"
)

// HistoryHandler 提供對話紀錄查詢、音訊下載與刪除
type HistoryHandler struct {
	historyService *service.HistoryService
}

func NewHistoryHandler(historyService *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

// ListHistory 列出自己說過或聽過的紀錄，最新的在前
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的頁碼"})
		return
	}
	pageSize, err := queryInt(c, "page_size", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的每頁筆數"})
		return
	}

	result, err := h.historyService.ListHistory(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextParticipantID), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *HistoryHandler) LatestTranscription(c *gin.Context) {
	turn, err := h.historyService.LatestTranscription(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextParticipantID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transcription": turn})
}

// DownloadAudio 只有說話者或聆聽者可以下載
func (h *HistoryHandler) DownloadAudio(c *gin.Context) {
	turn, data, err := h.historyService.Audio(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextParticipantID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+path.Base(turn.AudioPath)+`"`)
	c.Data(http.StatusOK, capability.AudioContentType(turn.AudioPath), data)
}

func (h *HistoryHandler) DeleteConversation(c *gin.Context) {
	if err := h.historyService.DeleteConversation(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextParticipantID)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "對話紀錄已刪除"})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
