package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/formbox/internal/metrics"
	"github.com/iliyamo/formbox/internal/model"
	"github.com/iliyamo/formbox/internal/repository"
	"github.com/iliyamo/formbox/internal/utils"
)

// AccountService defines registration and session operations.
type AccountService interface {
	// Register creates an account.  Email is stored lower-cased.
	Register(ctx context.Context, username, email, password string) (userID uint64, err error)
	// Login verifies credentials and opens a new session.
	Login(ctx context.Context, email, password string) (Session, error)
	// Logout revokes the session named by token, if any.
	Logout(ctx context.Context, token string) error
	// Authenticate resolves a session credential to its account id.
	Authenticate(ctx context.Context, token string) (userID uint64, err error)
}

// Session is what Login hands back to the transport layer.
type Session struct {
	UserID    uint64
	Token     string // value of the session cookie
	ExpiresAt time.Time
}

// AccountOptions configures AccountServiceImpl.
type AccountOptions struct {
	Secret     []byte
	SessionTTL time.Duration
	BcryptCost int
}

type AccountServiceImpl struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	opts     AccountOptions
	log      *zap.Logger
	now      func() time.Time
}

var _ AccountService = (*AccountServiceImpl)(nil)

// NewAccountService constructs AccountServiceImpl with required dependencies.
func NewAccountService(users repository.UserRepository, sessions repository.SessionRepository, opts AccountOptions, log *zap.Logger) *AccountServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountServiceImpl{
		users:    users,
		sessions: sessions,
		opts:     opts,
		log:      log.Named("account"),
		now:      time.Now,
	}
}

func (s *AccountServiceImpl) Register(ctx context.Context, username, email, password string) (uint64, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return 0, invalid("username, email and password are required")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return 0, conflict("email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := utils.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return 0, invalid("password must be at most 72 bytes")
		}
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.users.Create(ctx, &model.User{Username: username, Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// lost a race on email, or the username is taken
			return 0, conflict("username or email already registered")
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", zap.Uint64("user_id", id))
	return id, nil
}

func (s *AccountServiceImpl) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		metrics.LoginAttempt("invalid")
		return Session{}, invalid("email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.LoginAttempt("invalid")
			return Session{}, ErrInvalidCredentials
		}
		metrics.LoginAttempt("error")
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		metrics.LoginAttempt("invalid")
		return Session{}, ErrInvalidCredentials
	}

	tok, err := utils.NewSessionToken(s.opts.Secret, u.ID, s.opts.SessionTTL)
	if err != nil {
		metrics.LoginAttempt("error")
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	if err := s.sessions.Create(ctx, u.ID, utils.HashToken(tok.SessionID), tok.Exp); err != nil {
		metrics.LoginAttempt("error")
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	metrics.LoginAttempt("ok")
	return Session{UserID: u.ID, Token: tok.Token, ExpiresAt: tok.Exp}, nil
}

// Logout is idempotent: a missing, malformed or already revoked token is
// not an error.  Only storage failures are reported.
func (s *AccountServiceImpl) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := utils.ParseSessionToken(s.opts.Secret, token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, utils.HashToken(claims.SessionID)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *AccountServiceImpl) Authenticate(ctx context.Context, token string) (uint64, error) {
	if token == "" {
		return 0, ErrUnauthenticated
	}
	claims, err := utils.ParseSessionToken(s.opts.Secret, token)
	if err != nil {
		return 0, ErrUnauthenticated
	}

	sess, err := s.sessions.GetByHash(ctx, utils.HashToken(claims.SessionID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUnauthenticated
		}
		return 0, fmt.Errorf("load session: %w", err)
	}
	if !sess.Active(s.now()) || sess.UserID != claims.UserID {
		return 0, ErrUnauthenticated
	}

	// the account may have been removed out of band
	if _, err := s.users.GetByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUnauthenticated
		}
		return 0, fmt.Errorf("load user: %w", err)
	}
	return claims.UserID, nil
}
