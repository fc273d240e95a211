package router

import (
	"github.com/gin-gonic/gin"

	"rankwell.app/onboard/internal/http/handler"
	"rankwell.app/onboard/internal/http/middleware"
	"rankwell.app/onboard/internal/service"
)

type RouterConfig struct {
	DashboardURL string
	IsProduction bool
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authHandler := handler.NewAuthHandler(services.Auth(), cfg.DashboardURL, cfg.IsProduction)
	interviewHandler := handler.NewInterviewHandler(services.Interviews())
	creditsHandler := handler.NewCreditsHandler(services.Credits())

	v1 := router.Group("/api/v1")
	{
		AuthRouter(v1.Group("/auth"), authHandler, services.Auth())

		authed := v1.Group("")
		authed.Use(middleware.RequireAuth(services.Auth()))
		{
			InterviewRouter(authed.Group("/interview"), interviewHandler)
			CreditsRouter(authed.Group("/credits"), creditsHandler)
		}
	}
}
