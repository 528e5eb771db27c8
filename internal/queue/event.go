// Package queue defines message payloads exchanged over the message
// broker together with the publisher and the background consumer.
package queue

import "time"

// Queue names.  Routing keys on the default exchange equal the queue name.
const (
	FormSubmittedQueue = "form.submitted"
	FormDeletedQueue   = "form.deleted"
)

// FormSubmittedEvent is published after a submission has been committed.
// It carries counts only; answers stay in the database.
type FormSubmittedEvent struct {
	FormID       uint64    `json:"form_id"`
	SubmissionID uint64    `json:"submission_id"`
	Responses    int       `json:"responses"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// FormDeletedEvent is published after a form and everything under it
// has been removed.
type FormDeletedEvent struct {
	FormID    uint64    `json:"form_id"`
	OwnerID   uint64    `json:"owner_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
