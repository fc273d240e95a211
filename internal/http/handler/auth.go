package handler

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rankwell.app/onboard/internal/http/dto"
	"rankwell.app/onboard/internal/http/middleware"
	"rankwell.app/onboard/internal/service"
)

const (
	stateCookieName = "onboard_oauth_state"
	stateMaxAge     = 600
	sessionMaxAge   = 7 * 24 * 60 * 60
)

type AuthHandler struct {
	authService  service.AuthService
	dashboardURL string
	isProduction bool
}

func NewAuthHandler(authService service.AuthService, dashboardURL string, isProduction bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		dashboardURL: dashboardURL,
		isProduction: isProduction,
	}
}

// Login hands the client the AuthKit authorization URL. The state nonce is
// mirrored in a short-lived cookie and checked on callback.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	state, err := generateState()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate state", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate login"})
		return
	}

	authURL, err := h.authService.GetAuthorizationURL(state)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get authorization URL", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initiate login"})
		return
	}

	c.SetCookie(
		stateCookieName,
		state,
		stateMaxAge,
		"/",
		"",
		h.isProduction,
		true,
	)

	c.JSON(http.StatusOK, dto.LoginResponse{AuthorizationURL: authURL, State: state})
}

func (h *AuthHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	code := c.Query("code")
	state := c.Query("state")
	errorParam := c.Query("error")

	if errorParam != "" {
		slog.WarnContext(ctx, "OAuth error", "error", errorParam, "description", c.Query("error_description"))
		c.Redirect(http.StatusTemporaryRedirect, h.dashboardURL+"?auth_error="+errorParam)
		return
	}

	storedState, err := c.Cookie(stateCookieName)
	if err != nil || state != storedState {
		slog.WarnContext(ctx, "state mismatch", "got", state)
		c.Redirect(http.StatusTemporaryRedirect, h.dashboardURL+"?auth_error=invalid_state")
		return
	}

	h.clearStateCookie(c)

	if code == "" {
		c.Redirect(http.StatusTemporaryRedirect, h.dashboardURL+"?auth_error=no_code")
		return
	}

	result, err := h.authService.HandleCallback(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to handle callback", "error", err)
		if errors.Is(err, service.ErrInvalidCode) {
			c.Redirect(http.StatusTemporaryRedirect, h.dashboardURL+"?auth_error=invalid_code")
			return
		}
		c.Redirect(http.StatusTemporaryRedirect, h.dashboardURL+"?auth_error=callback_failed")
		return
	}

	h.setSessionCookie(c, result.Session.ID)

	slog.InfoContext(ctx, "user logged in",
		"user_id", result.User.ID,
		"account_id", result.Account.ID,
		"email", result.User.Email,
	)

	c.Redirect(http.StatusTemporaryRedirect, h.dashboardURL+"/onboarding")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	sessionID, err := middleware.SessionIDFrom(c)
	if err == nil && sessionID > 0 {
		if err := h.authService.Logout(ctx, sessionID); err != nil {
			slog.WarnContext(ctx, "failed to delete session", "error", err, "session_id", sessionID)
		}
	}

	h.clearSessionCookie(c)

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me reports the authenticated identity. Wired behind RequireAuth.
func (h *AuthHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()

	user := middleware.GetUser(ctx)
	account := middleware.GetAccount(ctx)
	if user == nil || account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	c.JSON(http.StatusOK, dto.ToMeResponse(user, account))
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, sessionID int64) {
	c.SetCookie(
		middleware.SessionCookieName,
		strconv.FormatInt(sessionID, 10),
		sessionMaxAge,
		"/",
		"",
		h.isProduction,
		true,
	)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetCookie(
		middleware.SessionCookieName,
		"",
		-1,
		"/",
		"",
		h.isProduction,
		true,
	)
}

func (h *AuthHandler) clearStateCookie(c *gin.Context) {
	c.SetCookie(
		stateCookieName,
		"",
		-1,
		"/",
		"",
		h.isProduction,
		true,
	)
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
