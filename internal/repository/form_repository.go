// This file holds the form repository: forms, their fields and the
// transactional cascade delete.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/formbox/internal/model"
)

// FormRepo encapsulates all database queries related to forms and fields.
type FormRepo struct {
	db *sql.DB
}

var _ FormRepository = (*FormRepo)(nil)

// NewFormRepo constructs a FormRepo with the provided DB handle.
func NewFormRepo(db *sql.DB) *FormRepo {
	return &FormRepo{db: db}
}

// CreateWithFields inserts the form and then each field in the order
// given, all inside one transaction, so a concurrent reader never sees
// a form whose fields are still being written.  f.ID is populated on
// success.
func (r *FormRepo) CreateWithFields(ctx context.Context, f *model.Form, fields []model.Field) (id uint64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO forms (owner_id, title, description) VALUES (?, ?, ?)",
		f.OwnerID, f.Title, nullString(f.Description))
	if err != nil {
		return 0, err
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	formID := uint64(lastID)

	if len(fields) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO fields (form_id, field_id, type, label, required, position) VALUES (?, ?, ?, ?, ?, ?)")
		if err != nil {
			return 0, err
		}
		defer stmt.Close()

		for i, fd := range fields {
			if _, err = stmt.ExecContext(ctx, formID, fd.FieldID, fd.Type, fd.Label, fd.Required, i); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	f.ID = formID
	return formID, nil
}

// GetByID fetches a form by its ID regardless of owner.  It returns
// ErrNotFound if no row is found.
func (r *FormRepo) GetByID(ctx context.Context, id uint64) (*model.Form, error) {
	const q = "SELECT id, owner_id, title, description, created_at FROM forms WHERE id = ?"
	var (
		f    model.Form
		desc sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&f.ID, &f.OwnerID, &f.Title, &desc, &f.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	f.Description = desc.String
	return &f, nil
}

// ListAll returns every form ordered by id.
func (r *FormRepo) ListAll(ctx context.Context) ([]model.Form, error) {
	const q = "SELECT id, owner_id, title, description, created_at FROM forms ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Form{}
	for rows.Next() {
		var (
			f    model.Form
			desc sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Title, &desc, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Description = desc.String
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFields returns the fields of a form in the order they were created.
func (r *FormRepo) ListFields(ctx context.Context, formID uint64) ([]model.Field, error) {
	const q = `SELECT id, form_id, field_id, type, label, required, position
	           FROM fields WHERE form_id = ? ORDER BY position, id`
	rows, err := r.db.QueryContext(ctx, q, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Field{}
	for rows.Next() {
		var fd model.Field
		if err := rows.Scan(&fd.ID, &fd.FormID, &fd.FieldID, &fd.Type, &fd.Label, &fd.Required, &fd.Position); err != nil {
			return nil, err
		}
		out = append(out, fd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByIDAndOwner removes a form and all dependent records (answers,
// submission events and fields) provided it belongs to the specified
// owner.  ErrNotFound is returned when the form does not exist and
// ErrForbidden when someone else owns it.  The row is locked before the
// ownership check and every delete happens in the same transaction, so
// readers see either the whole form or none of it.
func (r *FormRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var dbOwnerID uint64
	if err = tx.QueryRowContext(ctx, "SELECT owner_id FROM forms WHERE id = ? FOR UPDATE", id).Scan(&dbOwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if dbOwnerID != ownerID {
		return ErrForbidden
	}
	// The schema cascades these too; deleting explicitly keeps the result
	// independent of foreign_key_checks.
	for _, q := range []string{
		"DELETE FROM submissions WHERE form_id = ?",
		"DELETE FROM submission_events WHERE form_id = ?",
		"DELETE FROM fields WHERE form_id = ?",
		"DELETE FROM forms WHERE id = ?",
	} {
		if _, err = tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
