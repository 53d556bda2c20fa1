// Package events publishes job lifecycle events to RabbitMQ so downstream
// consumers (shop dashboards, audit) can react to terminal job outcomes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/queue"
	"github.com/yunusdemirbag/dolphinmanager-sub002/shared/rabbitmq"
)

// Publisher implements queue.EventSink on the shared RabbitMQ client.
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewPublisher creates an event publisher.
func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// PublishJobEvent emits one terminal job event as JSON.
func (p *Publisher) PublishJobEvent(ctx context.Context, event queue.JobEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	if err := p.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}

	p.logger.Debug("Job event published",
		slog.String("job_id", event.JobID),
		slog.String("status", string(event.Status)),
	)
	return nil
}
