package service

import (
	"context"

	"github.com/iliyamo/formbox/internal/queue"
)

// EventPublisher is the outbound side of the event queue.  Services call
// it after a transaction has committed; failures are logged and never
// fail the request.
type EventPublisher interface {
	PublishFormSubmitted(ctx context.Context, ev queue.FormSubmittedEvent) error
	PublishFormDeleted(ctx context.Context, ev queue.FormDeletedEvent) error
}

var _ EventPublisher = (*queue.Publisher)(nil)

type nopPublisher struct{}

func (nopPublisher) PublishFormSubmitted(context.Context, queue.FormSubmittedEvent) error { return nil }
func (nopPublisher) PublishFormDeleted(context.Context, queue.FormDeletedEvent) error     { return nil }
