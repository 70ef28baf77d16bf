package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"linguameet/internal/api/handlers"
	"linguameet/internal/middleware"
	"linguameet/internal/service"
	"linguameet/internal/utils"
	"linguameet/pkg/config"
)

func SetupRoutes(r *gin.Engine, services *service.Services, tokens *utils.TokenManager, cfg config.ServerConfig) {
	// 初始化 handlers
	roomHandler := handlers.NewRoomHandler(services.Room, services.Conference)
	participantHandler := handlers.NewParticipantHandler(services.Participant)
	historyHandler := handlers.NewHistoryHandler(services.History)
	wsHandler := handlers.NewWebSocketHandler(services.Conference, services.Room, cfg.AllowedOrigins, cfg.ReadLimit)

	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// 公開路由
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
		api.GET("/languages", roomHandler.ListLanguages)

		rooms := api.Group("/rooms")
		{
			rooms.GET("", roomHandler.ListRooms)
			rooms.POST("", roomHandler.CreateRoom)
			rooms.GET("/:id", roomHandler.GetRoom)
			rooms.DELETE("/:id", roomHandler.DeactivateRoom)

			rooms.POST("/:id/participants", participantHandler.JoinRoom)
			rooms.GET("/:id/participants", participantHandler.ListParticipants)

			// WebSocket 連接點，身份由 join 訊息與其 token 綁定
			rooms.GET("/:id/ws", wsHandler.HandleWebSocket)
		}
	}

	// 需要與會者 token 的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware(tokens))
	{
		member := authorized.Group("/rooms/:id", middleware.RoomScope("id"))
		{
			member.PATCH("/participants/me", participantHandler.UpdateMe)
			member.POST("/leave", participantHandler.LeaveRoom)
			member.GET("/history", historyHandler.ListHistory)
			member.GET("/history/latest", historyHandler.LatestTranscription)
		}

		conversations := authorized.Group("/conversations")
		{
			conversations.GET("/:id/audio", historyHandler.DownloadAudio)
			conversations.DELETE("/:id", historyHandler.DeleteConversation)
		}
	}
}
