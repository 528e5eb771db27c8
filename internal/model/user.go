package model

import "time"

// User represents an account record as stored in the `users` table.
// Each field corresponds to a column in the database.  Handlers define
// their own response types; the password hash never leaves the service
// layer.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique display name.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hashed password.
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
}

// Session models an entry in the `sessions` table.  A session is created
// on login and revoked on logout.  The raw session id is only ever held
// by the client inside its signed cookie; the table stores its SHA-256
// hash.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – owner of the session.
//	TokenHash – SHA-256 hex digest of the raw session id.
//	ExpiresAt – expiration timestamp.
//	RevokedAt – when the session was revoked (nil while active).
//	CreatedAt – timestamp of creation.
type Session struct {
	ID        uint64     // sessions.id
	UserID    uint64     // sessions.user_id
	TokenHash string     // sessions.token_hash
	ExpiresAt time.Time  // sessions.expires_at
	RevokedAt *time.Time // sessions.revoked_at (nullable)
	CreatedAt time.Time  // sessions.created_at
}

// Active reports whether the session may still authenticate requests.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
