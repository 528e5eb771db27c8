package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/formbox/internal/model"
)

// SubmissionRepo stores submitted answers and serves them back page by
// page.
type SubmissionRepo struct {
	db *sql.DB
}

var _ SubmissionRepository = (*SubmissionRepo)(nil)

func NewSubmissionRepo(db *sql.DB) *SubmissionRepo {
	return &SubmissionRepo{db: db}
}

// Create verifies the form exists and then records one submission event
// with one answer row per response, all in a single transaction.  When
// responses is empty nothing is written and the returned event id is 0.
func (r *SubmissionRepo) Create(ctx context.Context, formID uint64, remoteIP string, responses []model.Response) (eventID uint64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// shared lock so a concurrent delete cannot remove the form between
	// the check and the inserts
	var exists uint64
	if err = tx.QueryRowContext(ctx, "SELECT id FROM forms WHERE id = ? LOCK IN SHARE MODE", formID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	if len(responses) > 0 {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO submission_events (form_id, remote_ip) VALUES (?, ?)", formID, remoteIP)
		if err != nil {
			return 0, translateInsertErr(err)
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		eventID = uint64(lastID)

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO submissions (form_id, event_id, field_id, value) VALUES (?, ?, ?, ?)")
		if err != nil {
			return 0, err
		}
		defer stmt.Close()
		for _, resp := range responses {
			if _, err = stmt.ExecContext(ctx, formID, eventID, resp.FieldID, jsonValue(resp.Value)); err != nil {
				return 0, translateInsertErr(err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return eventID, nil
}

// Page returns answer rows of a form ordered by id together with the
// total number of rows the form has.  A form without rows, including
// one that does not exist, yields an empty slice and a zero total.  Both
// queries share one read-only snapshot so the total matches the rows.
func (r *SubmissionRepo) Page(ctx context.Context, formID uint64, limit, offset int) ([]model.Submission, int64, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM submissions WHERE form_id = ?", formID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, form_id, event_id, field_id, value
		   FROM submissions
		  WHERE form_id = ?
		  ORDER BY id
		  LIMIT ? OFFSET ?`, formID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Submission{}
	for rows.Next() {
		var (
			s   model.Submission
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.FormID, &s.EventID, &s.FieldID, &raw); err != nil {
			return nil, 0, err
		}
		if raw != nil {
			// copy out of the driver's buffer
			s.Value = append([]byte(nil), raw...)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	_ = rows.Close()
	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// jsonValue maps an absent value to SQL NULL.
func jsonValue(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}

func translateInsertErr(err error) error {
	if isMissingParent(err) {
		return ErrNotFound
	}
	return err
}
