package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/service"
)

type contextKey string

const (
	// SessionCookieName is shared with the auth handler, which issues and
	// clears the cookie.
	SessionCookieName = "onboard_session"

	userContextKey      contextKey = "user"
	accountContextKey   contextKey = "account"
	sessionIDContextKey contextKey = "session_id"
)

// RequireAuth resolves the session from the Authorization bearer token or the
// session cookie, validates it, and loads the user and their account into the
// request context. Every interview route sits behind it.
func RequireAuth(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := SessionIDFrom(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		user, account, err := authService.ValidateSession(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, service.ErrSessionExpired) || errors.Is(err, service.ErrUserNotFound) {
				clearSessionCookie(c)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to validate session"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, accountContextKey, account)
		ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

func GetAccount(ctx context.Context) *model.Account {
	account, _ := ctx.Value(accountContextKey).(*model.Account)
	return account
}

func GetSessionID(ctx context.Context) int64 {
	sessionID, _ := ctx.Value(sessionIDContextKey).(int64)
	return sessionID
}

// SessionIDFrom extracts the session id, preferring a bearer token over the
// cookie so API clients without a cookie jar can authenticate.
func SessionIDFrom(c *gin.Context) (int64, error) {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strconv.ParseInt(strings.TrimPrefix(h, "Bearer "), 10, 64)
	}

	cookie, err := c.Cookie(SessionCookieName)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(cookie, 10, 64)
}

func clearSessionCookie(c *gin.Context) {
	c.SetCookie(
		SessionCookieName,
		"",
		-1,
		"/",
		"",
		false,
		true,
	)
}
