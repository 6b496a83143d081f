package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/vocab-quiz/internal/config"
	"github.com/stemsi/vocab-quiz/internal/handler"
	"github.com/stemsi/vocab-quiz/internal/middleware"
	"github.com/stemsi/vocab-quiz/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Result  *handler.ResultHandler
	Config  *handler.ConfigHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.TestMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// An empty AllowedOrigins allows all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	// ─── 1. API Group (JWT + Rate Limit) ───────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireJWT(auth))
	if limiter != nil {
		api.Use(limiter.Middleware())
	}
	{
		api.GET("/system/status", handlers.System.Status)

		// Session config storage (settings screen)
		api.GET("/tests/:test_id/config", handlers.Config.GetConfig)
		api.PUT("/tests/:test_id/config", handlers.Config.SaveConfig)

		// Stored results
		api.GET("/results/:result_id", handlers.Result.GetResult)
	}

	// ─── 2. Session Group (live timers, never cached) ──────────────────
	sessions := api.Group("")
	sessions.Use(middleware.NoStore())
	{
		sessions.POST("/tests/:test_id/sessions", handlers.Session.StartSession)
		sessions.GET("/sessions/:session_id", handlers.Session.GetSession)
		sessions.POST("/sessions/:session_id/actions", handlers.Session.ApplyAction)
		sessions.DELETE("/sessions/:session_id", handlers.Session.AbandonSession)
		sessions.GET("/sessions/:session_id/result", handlers.Session.GetResult)
		sessions.POST("/sessions/:session_id/promote", handlers.Session.PromoteResult)
	}

	// ─── 3. WebSocket Group (query token auth) ─────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(middleware.RequireWSAuth(auth))
	{
		wsGroup.GET("/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
