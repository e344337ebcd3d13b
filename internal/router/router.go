// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/subashmuthub/lab-management-system/internal/handler"
	"github.com/subashmuthub/lab-management-system/internal/middleware"
	"github.com/subashmuthub/lab-management-system/internal/model"
	"github.com/subashmuthub/lab-management-system/internal/session"
)

// RegisterRoutes registers routes that do not require authentication.
// /healthz serves load balancers and monitoring; /metrics exposes the
// Prometheus registry.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the authentication surface. Unauthenticated
// operations live under /v1/auth; endpoints that need a session live
// under /v1. The limiter guards the credential and passcode endpoints
// against brute force and is a no-op when rate limiting is disabled.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, store session.Store, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/resend-otp", a.ResendOTP)
	g.POST("/login", a.Login)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	auth := e.Group("/v1")
	auth.Use(middleware.SessionAuth(store))
	auth.GET("/me", a.Me)
	auth.POST("/auth/logout", a.Logout)
}

// RegisterBookings registers the booking surface. Every route requires
// a valid session and any registered role may book.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, store session.Store) {
	g := e.Group("/v1/bookings")
	g.Use(middleware.SessionAuth(store))
	g.Use(middleware.RequireRole(model.RoleAdmin, model.RoleTechnician, model.RoleStudent))
	g.POST("", b.Create)
	g.GET("", b.List)
	g.GET("/:id", b.Get)
	g.DELETE("/:id", b.Cancel)
}
