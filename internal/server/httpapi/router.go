package httpapi

import (
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const basePath = "/api/v1/users"

// NewRouter builds the gin engine with every route of the accounts API.
func NewRouter(h *Handler, logger logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(requestLogger(logger))

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(h.NotFound)

	users := r.Group(basePath)
	users.POST("/register", h.Register)
	users.POST("/login", h.Login)
	users.POST("/refresh-token", h.RefreshToken)

	secured := users.Group("", h.RequireAuth())
	secured.POST("/logout", h.Logout)
	secured.POST("/change-password", h.ChangePassword)
	secured.GET("/current-user", h.CurrentUser)

	return r
}
