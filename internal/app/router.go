package app

import (
	"edumentor_backend/internal/config"
	"edumentor_backend/internal/middleware"
	"edumentor_backend/internal/model"
	"edumentor_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		diagnostics := authGroup.Group("/diagnostics")
		diagnostics.Use(middleware.RoleMiddleware(model.Student))
		{
			diagnostics.GET("/:subject/question", c.diagnostic.NextQuestion)
			diagnostics.POST("/answers", c.diagnostic.SubmitAnswer)
		}

		// Status is readable by parents too.
		authGroup.GET("/diagnostics/status", c.diagnostic.Status)
		authGroup.GET("/profile", c.report.Profile)
		authGroup.GET("/reports/:assessmentId", c.report.Report)
		authGroup.GET("/study-plan", c.report.StudyPlan)
	}
}
