package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"linguameet/internal/middleware"
	"linguameet/internal/models"
	"linguameet/internal/service"
)

// ParticipantHandler 處理與會者加入、更新與離開
type ParticipantHandler struct {
	participantService *service.ParticipantService
}

func NewParticipantHandler(participantService *service.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participantService: participantService}
}

// JoinRoom 建立與會者並發給存取 token，之後以 WebSocket 的 join 訊息綁定連線
func (h *ParticipantHandler) JoinRoom(c *gin.Context) {
	var input struct {
		Name              string `json:"name" binding:"required,max=100"`
		Language          string `json:"language" binding:"omitempty,max=10"`
		ReceptionLanguage string `json:"reception_language" binding:"omitempty,max=10"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, token, err := h.participantService.JoinRoom(c.Request.Context(), c.Param("id"), input.Name, input.Language, input.ReceptionLanguage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"participant": participant,
		"token":       token,
	})
}

func (h *ParticipantHandler) ListParticipants(c *gin.Context) {
	participants, err := h.participantService.ListActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, lo.Map(participants, func(p models.Participant, _ int) models.ParticipantInfo {
		return p.Info()
	}))
}

// UpdateMe 更新自己的麥克風狀態或說話語言
func (h *ParticipantHandler) UpdateMe(c *gin.Context) {
	var input struct {
		MicrophoneActive *bool   `json:"microphone_active"`
		Language         *string `json:"language" binding:"omitempty,max=10"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, err := h.participantService.UpdateParticipant(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextParticipantID), service.ParticipantUpdate{
		MicrophoneOn: input.MicrophoneActive,
		Language:     input.Language,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, participant)
}

// LeaveRoom 處理離開房間的請求
func (h *ParticipantHandler) LeaveRoom(c *gin.Context) {
	if err := h.participantService.LeaveRoom(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextParticipantID)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "成功離開房間"})
}
