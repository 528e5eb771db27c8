package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/formbox/internal/service"
)

// Authenticator resolves a session credential to an account id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uint64, error)
}

// SessionToken extracts the session credential from the named cookie,
// falling back to an "Authorization: Bearer" header for non-browser
// clients.  It returns "" when neither is present.
func SessionToken(c echo.Context, cookieName string) string {
	if ck, err := c.Cookie(cookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// SessionAuth returns an Echo middleware that rejects requests without a
// live session with 401 and otherwise stores the account id in the
// context under UserIDKey.  It should wrap every route that needs an
// authenticated caller.
func SessionAuth(auth Authenticator, cookieName string, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := SessionToken(c, cookieName)
			if tok == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			uid, err := auth.Authenticate(c.Request().Context(), tok)
			if err != nil {
				if errors.Is(err, service.ErrUnauthenticated) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
				}
				log.Error("session lookup failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			c.Set(UserIDKey, uid)
			return next(c)
		}
	}
}
