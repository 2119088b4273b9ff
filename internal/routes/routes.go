// Package routes wires handlers and middleware onto the router.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yukikurage/process-tracker-api/internal/handlers"
	"github.com/yukikurage/process-tracker-api/internal/middleware"
	"github.com/yukikurage/process-tracker-api/internal/services"
)

// Handlers groups everything Setup registers.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Process *handlers.ProcessHandler
	Health  *handlers.HealthHandler
}

// Setup configures all HTTP routes for the application.
func Setup(router *gin.Engine, h Handlers, tokens services.TokenService, processService *services.ProcessService) {
	requireAuth := middleware.RequireAuth(tokens)

	router.GET("/health", h.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.GET("/me", requireAuth, h.Auth.GetCurrentUser)
		auth.PATCH("/me", requireAuth, h.Auth.UpdateCurrentUser)
		auth.GET("/is-admin", requireAuth, h.Auth.IsAdmin)

		discord := auth.Group("/discord")
		{
			discord.GET("/login", middleware.OptionalAuth(tokens), h.Auth.StartOAuth(services.ProviderDiscord))
			discord.GET("/callback", h.Auth.Callback(services.ProviderDiscord))
			discord.POST("/bot-token", h.Auth.BotToken)
			discord.POST("/link", requireAuth, h.Auth.LinkDiscord)
			discord.DELETE("/disconnect", requireAuth, h.Auth.DisconnectDiscord)
		}

		google := auth.Group("/google")
		{
			google.GET("/login", middleware.OptionalAuth(tokens), h.Auth.StartOAuth(services.ProviderGoogle))
			google.GET("/callback", h.Auth.Callback(services.ProviderGoogle))
		}
	}

	processes := router.Group("/processes")
	processes.Use(requireAuth)
	{
		processes.GET("", h.Process.ListProcesses)
		processes.GET("/:id", middleware.RequireProcessAccess(processService), h.Process.GetProcess)
	}
}
