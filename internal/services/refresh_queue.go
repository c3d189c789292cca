package services

import (
	"context"
	"errors"
	"fmt"

	"budget/internal/amqp"
	applog "budget/internal/log"
)

// ErrNoPublisher is returned when an asynchronous refresh is requested
// without a message broker.
var ErrNoPublisher = errors.New("refresh publisher not configured")

// RefreshPublisher queues refresh requests for the worker.
type RefreshPublisher interface {
	PublishRefreshRequest(ctx context.Context, reason string) (*amqp.RefreshRequestMessage, error)
}

var _ RefreshPublisher = (*amqp.Client)(nil)

// RefreshQueue hands refreshes to budget-worker instead of running them
// in the calling process.
type RefreshQueue struct {
	publisher RefreshPublisher
	logger    *applog.Logger
}

// NewRefreshQueue returns a queue over p. A nil publisher yields a queue
// whose requests fail with ErrNoPublisher.
func NewRefreshQueue(p RefreshPublisher) *RefreshQueue {
	return &RefreshQueue{
		publisher: p,
		logger:    applog.ForComponent(applog.ComponentRefresh),
	}
}

// RequestRefresh queues a refresh and returns its request id.
func (q *RefreshQueue) RequestRefresh(ctx context.Context, reason string) (string, error) {
	if q.publisher == nil {
		return "", ErrNoPublisher
	}
	msg, err := q.publisher.PublishRefreshRequest(ctx, reason)
	if err != nil {
		return "", fmt.Errorf("request refresh: %w", err)
	}
	q.logger.InfoContext(ctx, "Refresh queued",
		applog.FieldRequestID, msg.RequestID,
		applog.FieldReason, reason)
	return msg.RequestID, nil
}
