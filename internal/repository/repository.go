package repository

import (
	"context"
	"time"

	"github.com/iliyamo/formbox/internal/model"
)

// UserRepository stores accounts.
type UserRepository interface {
	// Create inserts a user and returns its id.  Duplicate email or
	// username yields ErrConflict.
	Create(ctx context.Context, u *model.User) (uint64, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// SessionRepository stores hashed login sessions.
type SessionRepository interface {
	Create(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (*model.Session, error)
	Revoke(ctx context.Context, tokenHash string) error
}

// FormRepository stores forms and their fields.
type FormRepository interface {
	// CreateWithFields writes the form and all its fields atomically.
	CreateWithFields(ctx context.Context, f *model.Form, fields []model.Field) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*model.Form, error)
	ListAll(ctx context.Context) ([]model.Form, error)
	ListFields(ctx context.Context, formID uint64) ([]model.Field, error)
	// DeleteByIDAndOwner removes the form with its fields and submissions
	// in one transaction.
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error
}

// SubmissionRepository stores submitted answers.
type SubmissionRepository interface {
	// Create records one submission event with one row per response.
	// An empty response list writes nothing and returns event id 0.
	Create(ctx context.Context, formID uint64, remoteIP string, responses []model.Response) (uint64, error)
	// Page returns up to limit answer rows for the form starting at
	// offset, plus the total number of answer rows for the form.  An
	// unknown form is not an error: it has no rows and a zero total.
	Page(ctx context.Context, formID uint64, limit, offset int) ([]model.Submission, int64, error)
}
