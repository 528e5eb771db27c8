package utils // package utils provides helpers for password hashing and session tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every way a session token can fail to parse.
var ErrInvalidToken = errors.New("invalid session token")

// SessionToken is a signed cookie value along with the raw session id it
// carries and its expiry.
type SessionToken struct {
	Token     string    // signed JWT handed to the client
	SessionID string    // raw random id; only its hash is stored
	Exp       time.Time // UTC expiration time
}

// SessionClaims are the verified contents of a session token.
type SessionClaims struct {
	UserID    uint64
	SessionID string
	ExpiresAt time.Time
}

// NewSessionToken creates a random session id and signs an HS256 JWT
// binding it to userID.  The JWT carries sub (user id), jti (session id),
// iat and exp.
func NewSessionToken(secret []byte, userID uint64, ttl time.Duration) (SessionToken, error) {
	sid, err := randomHex(32)
	if err != nil {
		return SessionToken{}, err
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		ID:        sid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, SessionID: sid, Exp: exp}, nil
}

// ParseSessionToken verifies the signature, algorithm and expiry of raw
// and returns its claims.  Any failure is reported as ErrInvalidToken.
func ParseSessionToken(secret []byte, raw string) (SessionClaims, error) {
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 || claims.ID == "" {
		return SessionClaims{}, fmt.Errorf("%w: bad subject or id", ErrInvalidToken)
	}
	return SessionClaims{UserID: uid, SessionID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// HashToken returns the SHA-256 hex digest of a raw session id.  Only the
// digest is persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns n bytes of crypto/rand data, hex encoded.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
