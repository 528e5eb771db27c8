package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/formbox/internal/middleware"
)

// RegisterForms registers the form and submission routes under /forms.
// Create and delete need a session; the rest is public.  Public form
// reads go through the response cache, which create and delete purge.
func RegisterForms(e *echo.Echo, d Deps) {
	g := e.Group("/forms")
	auth := middleware.SessionAuth(d.Authenticator, d.CookieName, d.Log)
	purge := d.Purger.PurgeOnSuccess()
	cache := orPass(d.Cache)

	g.POST("/create", d.Forms.Create, auth, purge)
	g.DELETE("/delete/:form_id", d.Forms.Delete, auth, purge)

	e.GET("/forms", d.Forms.List, cache)
	g.GET("/", d.Forms.List, cache)
	g.GET("/:form_id", d.Forms.Get, cache)

	g.POST("/submit/:form_id", d.Submissions.Submit, orPass(d.RateLimit))
	g.GET("/submissions/:form_id", d.Submissions.List)
}
