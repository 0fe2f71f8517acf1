// Package router wires HTTP routes to their handlers and middleware.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/minhnq/library-lending/internal/handler"
    "github.com/minhnq/library-lending/internal/middleware"
    "github.com/minhnq/library-lending/internal/model"
)

// RegisterRoutes registers routes that carry no authentication at all.
func RegisterRoutes(e *echo.Echo) {
    // Health probe for load balancers and monitoring.
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints.  Register, login, refresh
// and logout live under /v1/auth without a JWT; /v1/me requires one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    g.POST("/refresh", a.Refresh)

    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.GET("/me", a.Me)
    auth.POST("/auth/logout", a.Logout)
}

// RegisterCatalog registers the public catalog browse endpoints.  cache is
// the optional Redis response cache; pass nil to serve uncached.
func RegisterCatalog(e *echo.Echo, b *handler.BookHandler, cache echo.MiddlewareFunc) {
    g := e.Group("/v1/books")
    if cache != nil {
        g.Use(cache)
    }
    g.GET("", b.List)
    g.GET("/:id", b.Get)
}

// RegisterReader registers everything a logged-in reader does: tickets,
// loans, reservations and payments.  limiter is the optional Redis token
// bucket applied to the mutating ticket and payment endpoints.
func RegisterReader(e *echo.Echo, jwtSecret string, limiter echo.MiddlewareFunc,
    t *handler.TicketHandler, l *handler.LoanHandler, r *handler.ReservationHandler, p *handler.PaymentHandler) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))

    mutating := []echo.MiddlewareFunc{}
    if limiter != nil {
        mutating = append(mutating, limiter)
    }

    g.POST("/tickets/borrow", t.CreateBorrow, mutating...)
    g.POST("/tickets/return", t.CreateReturn, mutating...)
    g.GET("/tickets/borrow", t.ListBorrow)
    g.GET("/tickets/return", t.ListReturn)
    g.GET("/tickets/borrow/:id/qr", t.BorrowQR)
    g.GET("/tickets/return/:id/qr", t.ReturnQR)
    g.DELETE("/tickets/borrow/:id", t.CancelBorrow)
    g.DELETE("/tickets/return/:id", t.CancelReturn)

    g.GET("/loans", l.List)
    g.GET("/loans/:id", l.Get)
    g.POST("/loans/:id/extend", l.Extend)

    g.POST("/reservations", r.Create, mutating...)
    g.GET("/reservations", r.List)
    g.GET("/reservations/ready", r.Ready)
    g.DELETE("/reservations/:id", r.Cancel)

    g.POST("/payments/fine", p.InitiateFine, mutating...)
    g.POST("/payments/membership", p.InitiateMembership, mutating...)
    g.GET("/payments", p.List)
}

// RegisterDesk registers the staff-only endpoints: the desk scan confirms
// and catalog management.
func RegisterDesk(e *echo.Echo, jwtSecret string, d *handler.DeskHandler, b *handler.BookHandler) {
    g := e.Group("/v1/admin")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole(model.RoleAdmin))

    g.POST("/lend/:token", d.ConfirmLend)
    g.POST("/return/:token", d.ConfirmReturn)

    g.POST("/books", b.Create)
    g.PUT("/books/:id", b.Update)
}

// RegisterPaymentCallbacks registers the provider-facing endpoints.  They
// are unauthenticated on purpose: the IPN comes from the provider's
// servers and the return URL from the reader's browser mid-redirect, and
// both are protected by the HMAC signature instead of a session.
func RegisterPaymentCallbacks(e *echo.Echo, p *handler.PaymentHandler) {
    e.GET("/v1/payments/vnpay/ipn", p.IPN)
    e.GET("/v1/payments/vnpay/return", p.Return)
}
