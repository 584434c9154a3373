package router

import (
	"github.com/labstack/echo/v4"

	"github.com/teatarmk/reservation-api/internal/handler"
	"github.com/teatarmk/reservation-api/internal/middleware"
	"github.com/teatarmk/reservation-api/internal/model"
)

// RegisterRoutes registers routes that need no authentication or
// dependencies.  Currently only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated browse endpoints.  The
// show catalog may be served from the Redis response cache.
func RegisterPublic(e *echo.Echo, sh *handler.ShowHandler, cache echo.MiddlewareFunc) {
	catalog := e.Group("/v1/shows")
	if cache != nil {
		catalog.Use(cache)
	}
	catalog.GET("", sh.ListShows)
	catalog.GET("/:id", sh.GetShow)
}

// RegisterAuth registers session and profile endpoints.  Register,
// login, refresh and logout live under /v1/auth and need no token;
// the profile endpoints require a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	me := e.Group("/v1/me")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.Use(middleware.RequireRole(model.RoleAdmin, model.RoleCustomer))
	me.GET("", a.Me)
	me.PUT("", a.UpdateProfile)
	me.PUT("/password", a.ChangePassword)
}

// RegisterBooking registers the reservation endpoints available to any
// authenticated user.  The reserved-seats read is deliberately not
// cached so seat maps always reflect the live ledger.
func RegisterBooking(e *echo.Echo, rh *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin, model.RoleCustomer))

	g.GET("/shows/:id/reserved-seats", rh.GetReservedSeats)
	g.POST("/reservations", rh.CreateReservation)
	g.POST("/reservations/hold", rh.HoldSeats)
	g.POST("/reservations/:id/confirm", rh.ConfirmReservation)
	g.DELETE("/reservations/:id", rh.DeleteReservation)
	g.GET("/my-reservations", rh.ListMyReservations)
}

// RegisterAdmin registers the admin-only endpoints: show catalog CRUD
// and the full reservation listing.
func RegisterAdmin(e *echo.Echo, sh *handler.ShowHandler, rh *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.POST("/shows", sh.CreateShow)
	g.PUT("/shows/:id", sh.UpdateShow)
	g.DELETE("/shows/:id", sh.DeleteShow)
	g.GET("/reservations", rh.ListAllReservations)
	g.GET("/shows/:id/reservations", rh.ListShowReservations)
}
