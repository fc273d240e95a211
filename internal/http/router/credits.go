package router

import (
	"github.com/gin-gonic/gin"

	"rankwell.app/onboard/internal/http/handler"
)

func CreditsRouter(rg *gin.RouterGroup, h *handler.CreditsHandler) {
	rg.GET("", h.Balance)
	rg.GET("/history", h.History)
}
