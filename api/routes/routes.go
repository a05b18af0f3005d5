package routes

import (
	"time"

	"authgate/api/handler"
	"authgate/api/middleware"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	AuthMiddleware middleware.AuthMiddleware
	RegisterRate   *middleware.RateLimiter
	LoginRate      *middleware.RateLimiter
}

func NewRouter(e *echo.Echo, authHandler *handler.AuthHandler, authMiddleware middleware.AuthMiddleware) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		AuthMiddleware: authMiddleware,
		RegisterRate:   middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:      middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.POST("/auth/register", r.Auth.Register, r.RegisterRate.Middleware())
	e.POST("/auth/login", r.Auth.Login, r.LoginRate.Middleware())
	e.POST("/auth/two-factor", r.Auth.TwoFactorLogin, r.LoginRate.Middleware())
	e.POST("/auth/refresh", r.Auth.Refresh, r.RegisterRate.Middleware())
	e.POST("/auth/logout", r.Auth.Logout)
	e.POST("/auth/logout-all", r.Auth.LogoutAll, r.AuthMiddleware.RequireAuth)
	e.POST("/auth/two-factor/setup", r.Auth.TwoFactorSetup, r.AuthMiddleware.RequireAuth)
	e.POST("/auth/two-factor/confirm", r.Auth.TwoFactorConfirm, r.AuthMiddleware.RequireAuth)
	e.POST("/auth/two-factor/disable", r.Auth.TwoFactorDisable, r.AuthMiddleware.RequireAuth)

	e.GET("/me", r.Auth.Me, r.AuthMiddleware.RequireAuth)
}
