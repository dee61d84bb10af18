package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/gin-gonic/gin"
)

const (
	accessCookie  = common.AccessTokenCookieName
	refreshCookie = common.RefreshTokenCookieName

	userKey = "user"
)

// RequireAuth resolves the access token from the accessToken cookie or the
// Authorization: Bearer header and stores the user in the gin context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.users.Authenticate(c.Request.Context(), accessToken(c))
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.Set(userKey, *user)
		c.Next()
	}
}

func accessToken(c *gin.Context) string {
	if v, err := c.Cookie(accessCookie); err == nil && v != "" {
		return v
	}
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func currentUser(c *gin.Context) (models.PublicUser, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.PublicUser{}, false
	}
	u, ok := v.(models.PublicUser)
	return u, ok
}

func (h *Handler) setTokenCookies(c *gin.Context, access, refresh string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, access, int(h.cookies.AccessTTL.Seconds()), "/", "", h.cookies.Secure, true)
	c.SetCookie(refreshCookie, refresh, int(h.cookies.RefreshTTL.Seconds()), "/", "", h.cookies.Secure, true)
}

func (h *Handler) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, "", -1, "/", "", h.cookies.Secure, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", h.cookies.Secure, true)
}

// requestLogger logs one line per request.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error(c.Request.Context(), "request", args...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn(c.Request.Context(), "request", args...)
		default:
			logger.Info(c.Request.Context(), "request", args...)
		}
	}
}
