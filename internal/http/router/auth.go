package router

import (
	"github.com/gin-gonic/gin"

	"rankwell.app/onboard/internal/http/handler"
	"rankwell.app/onboard/internal/http/middleware"
	"rankwell.app/onboard/internal/service"
)

// AuthRouter wires the login flow. Login, callback and logout are public;
// /me requires a session.
func AuthRouter(rg *gin.RouterGroup, h *handler.AuthHandler, authService service.AuthService) {
	rg.POST("/login", h.Login)
	rg.GET("/callback", h.Callback)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", middleware.RequireAuth(authService), h.Me)
}
