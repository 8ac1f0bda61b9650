package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turnlabs/authgate/internal/container"
	handlers "github.com/turnlabs/authgate/internal/interface/http"
	"github.com/turnlabs/authgate/internal/interface/middleware"
)

// AuthModule wires the registration/login facade into routes.
// Public: POST /api/auth/register/admin, POST /api/auth/login,
// GET /api/auth/profiles/search
type AuthModule struct {
	Handler *handlers.AuthHandler
}

func NewAuthModule(h *handlers.AuthHandler) *AuthModule {
	return &AuthModule{Handler: h}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Public endpoints with IP-based rate limits
	registerLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)
	searchLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/register/admin", registerLimiter, m.Handler.Register)
	rg.POST("/auth/login", loginLimiter, m.Handler.Login)
	rg.GET("/auth/profiles/search", searchLimiter, m.Handler.SearchProfiles)
}
