package main

import (
	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/handlers"
	"github.com/teamforge/teamforge/internal/middleware"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for public auth routes
	authLimiter := middleware.NewRateLimiter(svc.cfg.Server.AuthRateLimit)

	// Health check
	r.GET("/health", svc.healthHandler.CheckHealth)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/signup", svc.authHandler.Signup)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// SSE notification stream (token accepted via query parameter)
		api.GET("/events/notifications", middleware.AuthRequired(), svc.notificationHandler.Stream)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Users (member pickers)
			userHandler := handlers.NewUserHandler(models.GetDB())
			protected.GET("/users", userHandler.List)
			protected.GET("/users/:id", userHandler.GetByID)

			// Teams
			teamHandler := handlers.NewTeamHandler(models.GetDB())
			protected.POST("/teams", teamHandler.Create)
			protected.GET("/teams", teamHandler.List)
			protected.GET("/teams/mine", teamHandler.ListMine)
			protected.GET("/teams/:id", teamHandler.GetByID)
			protected.PUT("/teams/:id", teamHandler.Update)
			protected.DELETE("/teams/:id", teamHandler.Delete)
			protected.POST("/teams/:id/subteams", teamHandler.CreateSubTeam)

			// Memberships
			memberHandler := handlers.NewMemberHandler(models.GetDB())
			protected.GET("/teams/:id/members", memberHandler.List)
			protected.POST("/teams/:id/members", memberHandler.Add)
			protected.PUT("/teams/:id/members/:userID", memberHandler.ChangeRole)
			protected.DELETE("/teams/:id/members/:userID", memberHandler.Remove)

			// Tasks
			taskHandler := handlers.NewTaskHandler(models.GetDB())
			protected.POST("/tasks", taskHandler.Create)
			protected.GET("/tasks/assigned", taskHandler.ListAssigned)
			protected.GET("/tasks/visible", taskHandler.ListVisible)
			protected.GET("/tasks/:id", taskHandler.GetByID)
			protected.PUT("/tasks/:id", taskHandler.Update)
			protected.PATCH("/tasks/:id/status", taskHandler.UpdateStatus)
			protected.DELETE("/tasks/:id", taskHandler.Delete)
			protected.GET("/teams/:id/tasks", taskHandler.ListByTeam)

			// Notifications
			protected.GET("/notifications", svc.notificationHandler.List)
			protected.GET("/notifications/unread-count", svc.notificationHandler.UnreadCount)
			protected.POST("/notifications/:id/read", svc.notificationHandler.MarkRead)
			protected.POST("/notifications/read-all", svc.notificationHandler.MarkAllRead)
		}

		// Scrum master only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.ScrumMasterRequired(), middleware.AuditLog())
		{
			admin.POST("/auth/promote", svc.authHandler.Promote)

			// System Logs
			systemLogHandler := handlers.NewSystemLogHandler(models.GetDB())
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)

			// System Config
			systemConfigHandler := handlers.NewSystemConfigHandler(models.GetDB())
			admin.GET("/system-configs", systemConfigHandler.GetByGroup)
			admin.GET("/system-configs/digest", systemConfigHandler.GetDigestSchedule)
			admin.PUT("/system-configs/digest", systemConfigHandler.UpdateDigestSchedule)
		}
	}
}
