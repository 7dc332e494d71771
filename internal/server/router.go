package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"rconbridge/internal/auth"
	"rconbridge/internal/handler"
	"rconbridge/internal/hub"
	"rconbridge/internal/middleware"
	"rconbridge/internal/pipeline"
)

type Deps struct {
	Pipeline    *pipeline.Pipeline
	TokenConfig auth.TokenConfig
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	wsHub := hub.New()

	authorizeLimiter := middleware.NewRateLimiter(10, time.Minute)
	authorizeHandler := &handler.AuthorizeHandler{Pipeline: deps.Pipeline, TokenConfig: deps.TokenConfig}
	r.POST("/v1/authorize", middleware.RateLimitByIP(authorizeLimiter), authorizeHandler.Authorize)

	protected := r.Group("/v1")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))

	commandHandler := &handler.CommandHandler{Pipeline: deps.Pipeline, Hub: wsHub}
	protected.POST("/command", commandHandler.Run)
	protected.GET("/status", commandHandler.Status)

	sessionHandler := &handler.SessionHandler{Pipeline: deps.Pipeline}
	protected.GET("/session", sessionHandler.Get)
	protected.DELETE("/session", sessionHandler.Logout)

	consoleHandler := &handler.ConsoleHandler{Pipeline: deps.Pipeline, Hub: wsHub, TokenConfig: deps.TokenConfig}
	r.GET("/ws/console", consoleHandler.Serve)

	return r
}
