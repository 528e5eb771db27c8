package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const dialTimeout = 3 * time.Second

// Publisher sends domain events to RabbitMQ.  A connection is opened per
// publish; event volume is low and this keeps the publisher free of
// reconnect state.  A disabled Publisher accepts every event and drops it.
type Publisher struct {
	url     string
	enabled bool
	log     *zap.Logger
}

// NewPublisher returns a Publisher for the broker at url.  When enabled
// is false every publish is a no-op.
func NewPublisher(url string, enabled bool, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, enabled: enabled, log: log.Named("publisher")}
}

// Enabled reports whether events actually leave the process.
func (p *Publisher) Enabled() bool { return p != nil && p.enabled }

// PublishFormSubmitted publishes ev to the form.submitted queue.
func (p *Publisher) PublishFormSubmitted(ctx context.Context, ev FormSubmittedEvent) error {
	return p.publish(ctx, FormSubmittedQueue, ev)
}

// PublishFormDeleted publishes ev to the form.deleted queue.
func (p *Publisher) PublishFormDeleted(ctx context.Context, ev FormDeletedEvent) error {
	return p.publish(ctx, FormDeletedQueue, ev)
}

// publish declares the durable queue, marshals v and sends it as a
// persistent message.  Errors are logged and returned so the caller can
// choose to ignore them.
func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		p.log.Error("marshal event failed", zap.String("queue", queue), zap.Error(err))
		return err
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		p.log.Warn("dial failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		p.log.Warn("queue declare failed", zap.String("queue", queue), zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		p.log.Warn("publish failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	return nil
}
