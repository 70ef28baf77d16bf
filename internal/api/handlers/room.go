package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"linguameet/internal/capability"
	"linguameet/internal/service"
)

// RoomHandler 處理與會議室相關的請求
type RoomHandler struct {
	roomService *service.RoomService
	conference  *service.ConferenceService
}

func NewRoomHandler(roomService *service.RoomService, conference *service.ConferenceService) *RoomHandler {
	return &RoomHandler{roomService: roomService, conference: conference}
}

// CreateRoom 處理創建新房間的請求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var input struct {
		Name            string `json:"name" binding:"required,max=100"`
		DefaultLanguage string `json:"default_language" binding:"omitempty,max=10"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), input.Name, input.DefaultLanguage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

// GetRoom 回傳啟用中的房間與目前人數
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

// DeactivateRoom 停用房間，房間內的與會者一併離開，連線也會被關閉
func (h *RoomHandler) DeactivateRoom(c *gin.Context) {
	if err := h.conference.CloseRoom(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "房間已停用"})
}

func (h *RoomHandler) ListLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, capability.Languages())
}
