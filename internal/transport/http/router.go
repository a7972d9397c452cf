package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"bsky-notifier/internal/transport/mw"
)

// NewRouter sets up all Echo routes and middleware. authSecret enables
// bearer-token auth on the management API when non-empty.
func NewRouter(h *Handler, authSecret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
	}))

	// Health (no auth required)
	e.GET("/health", h.Health)

	api := e.Group("/api")
	if authSecret != "" {
		api.Use(mw.BearerAuth(authSecret))
	}

	api.GET("/accounts", h.ListAccounts)
	api.POST("/accounts", h.AddAccount)
	api.DELETE("/accounts/:handle", h.RemoveAccount)
	api.PATCH("/accounts/:handle/preferences", h.UpdatePreferences)
	api.POST("/accounts/:handle/toggle", h.ToggleAccount)

	// SSE endpoint backing the browser notification channel
	api.GET("/stream", h.Stream)

	return e
}
