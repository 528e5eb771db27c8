// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/formbox/internal/handler"
	"github.com/iliyamo/formbox/internal/metrics"
	"github.com/iliyamo/formbox/internal/middleware"
)

// Deps bundles everything the route table needs.  Zero-valued
// middlewares are replaced with pass-throughs.
type Deps struct {
	Auth        *handler.AuthHandler
	Forms       *handler.FormHandler
	Submissions *handler.SubmissionHandler
	DB          handler.Pinger

	Authenticator middleware.Authenticator
	CookieName    string

	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
	Purger    *middleware.CachePurger

	Log *zap.Logger
}

// New builds an Echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(
		middleware.RequestID(),
		middleware.RequestLogger(d.Log),
		middleware.Metrics(),
		middleware.Recover(d.Log),
	)
	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d)
	RegisterForms(e, d)
	return e
}

// RegisterRoutes registers the welcome, health and metrics endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/", handler.Welcome)
	if db != nil {
		e.GET("/healthz", handler.Health(db))
	}
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers the account routes.  None of them require a
// session; all of them are rate limited.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/auth", orPass(d.RateLimit))
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/logout", d.Auth.Logout)
}

func orPass(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}
