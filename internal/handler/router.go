package handler

import (
	"net/http"
	"time"

	"kynor-backend/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Chat       *ChatHandler
	Preference *PreferenceHandler
	Catalog    *CatalogHandler
}

func NewRouter(cfg *config.Config, h Handlers) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS配置
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	if cfg.RateLimit.Enabled {
		api.Use(NewRateLimiter(cfg.RateLimit).Middleware())
	}
	{
		chat := api.Group("/chat")
		{
			chat.POST("/send", h.Chat.SendMessage)
			chat.POST("/stream", h.Chat.StreamChat)
			chat.POST("/regenerate", h.Chat.Regenerate)
			chat.POST("/session", h.Chat.CreateSession)
			chat.POST("/session/list", h.Chat.GetSessionList)
			chat.POST("/session/clear", h.Chat.ClearAllSessions)
			chat.GET("/session/:session_id", h.Chat.GetSession)
			chat.PUT("/session/:session_id", h.Chat.UpdateSessionTitle)
			chat.POST("/session/:session_id/select", h.Chat.SelectSession)
			chat.GET("/messages/:session_id", h.Chat.GetMessages)
		}

		api.GET("/models", h.Catalog.Models)
		api.GET("/commands", h.Catalog.Commands)
		api.GET("/content/types", h.Catalog.ContentTypes)

		api.GET("/preferences", h.Preference.Get)
		api.PUT("/preferences/theme", h.Preference.SetTheme)
		api.POST("/preferences/theme/toggle", h.Preference.ToggleTheme)

		auth := api.Group("/auth")
		{
			auth.POST("/code", h.Preference.GenerateCode)
			auth.POST("/login", h.Preference.Login)
			auth.POST("/logout", h.Preference.Logout)
		}
	}

	return router
}
