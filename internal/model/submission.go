package model

import (
	"encoding/json"
	"time"
)

// SubmissionEvent is one call to the public submit endpoint.  Every
// answer given in that call points back to it.
type SubmissionEvent struct {
	ID        uint64    // submission_events.id
	FormID    uint64    // submission_events.form_id
	RemoteIP  string    // submission_events.remote_ip
	CreatedAt time.Time // submission_events.created_at
}

// Submission is a single stored answer: one row per answered field.
// Value holds the raw JSON the client sent; nil means JSON null.
type Submission struct {
	ID      uint64          // submissions.id
	FormID  uint64          // submissions.form_id
	EventID uint64          // submissions.event_id
	FieldID string          // submissions.field_id
	Value   json.RawMessage // submissions.value (nullable JSON)
}

// Response is an answer as supplied by the submitter.
type Response struct {
	FieldID string
	Value   json.RawMessage
}
