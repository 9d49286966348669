// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/averon/venue-reservation/internal/config"
	"github.com/averon/venue-reservation/internal/handler"
	"github.com/averon/venue-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated browse endpoints plus the
// payment verification endpoint.  The verification route is called by
// the external gateway (or the client after a wallet payment) and is
// authenticated by its HMAC signature, not by a JWT; it gets a tighter
// rate limit because of that.
func RegisterPublic(e *echo.Echo, b *handler.BrowseHandler, p *handler.PaymentHandler, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	rl := middleware.RateLimit(rlCfg, rdb, 0)
	e.GET("/v1/facilities/:id/slots", b.GetFacilitySlots, rl)
	e.GET("/v1/events", b.GetUpcomingEvents, rl)
	e.GET("/v1/products", b.GetProducts, rl)

	verifyRl := middleware.RateLimit(rlCfg, rdb, rlCfg.VerifyLimit)
	e.POST("/v1/payments/verify", p.VerifyPayment, verifyRl)
}

// RegisterReservations registers the authenticated reservation lifecycle
// under /v1.  Every route requires a valid access token; both customer
// and owner roles may book.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("CUSTOMER", "OWNER"))
	g.Use(middleware.RateLimit(rlCfg, rdb, 0))

	g.POST("/reservations", r.Create)
	g.GET("/reservations", r.List)
	g.GET("/reservations/:id", r.Get)
	g.DELETE("/reservations/:id", r.Cancel)
}
