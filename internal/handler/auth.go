package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/formbox/internal/middleware"
	"github.com/iliyamo/formbox/internal/service"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Accounts service.AccountService
	Cookie   CookieConfig
	Log      *zap.Logger
}

func NewAuthHandler(accounts service.AccountService, cookie CookieConfig, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Accounts: accounts, Cookie: cookie, Log: log.Named("auth")}
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account.  It does not log the caller in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.Accounts.Register(ctx, req.Username, req.Email, req.Password); err != nil {
		return writeError(c, h.Log, err, "not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User registered successfully"})
}

// Login verifies credentials and sets the session cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sess, err := h.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, h.Log, err, "not found")
	}
	c.SetCookie(h.sessionCookie(sess.Token, sess.ExpiresAt))
	return c.JSON(http.StatusOK, echo.Map{"message": "Login successful"})
}

// Logout revokes the current session, if any, and clears the cookie.  It
// succeeds without a session.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Accounts.Logout(ctx, middleware.SessionToken(c, h.Cookie.Name)); err != nil {
		// the cookie is cleared regardless
		h.Log.Error("revoke session failed", zap.Error(err))
	}
	ck := h.sessionCookie("", time.Unix(0, 0))
	ck.MaxAge = -1
	c.SetCookie(ck)
	return c.JSON(http.StatusOK, echo.Map{"message": "Logout successful"})
}

func (h *AuthHandler) sessionCookie(value string, exp time.Time) *http.Cookie {
	maxAge := int(time.Until(exp).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	return &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
