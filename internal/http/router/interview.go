package router

import (
	"github.com/gin-gonic/gin"

	"rankwell.app/onboard/internal/http/handler"
)

func InterviewRouter(rg *gin.RouterGroup, h *handler.InterviewHandler) {
	rg.GET("", h.Get)
	rg.POST("", h.Create)
	rg.POST("/submit", h.Submit)
	rg.GET("/next", h.Next)
	rg.GET("/progress", h.Progress)
	rg.GET("/messages", h.Messages)
	rg.POST("/actions/:name", h.InvokeAction)
	rg.POST("/revert", h.Revert)
	rg.POST("/reset", h.Reset)
	rg.POST("/abandon", h.Abandon)
}
