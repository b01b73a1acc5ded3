package application

import (
	"context"
	"fmt"

	"archie-builder-credential-broker/internal/domain"

	"github.com/rs/zerolog"
)

// WebhookHandler processes the webhook topics it claims
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes verified webhook events to their handlers
type WebhookDispatcher struct {
	handlers []WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a dispatcher over handlers
func NewWebhookDispatcher(logger zerolog.Logger, handlers ...WebhookHandler) *WebhookDispatcher {
	return &WebhookDispatcher{
		handlers: handlers,
		logger:   logger,
	}
}

// Dispatch runs every handler that claims the event topic. Topics nobody
// claims are acknowledged without action.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	handled := false
	for _, h := range d.handlers {
		if !h.CanHandle(event.Topic) {
			continue
		}
		handled = true
		if err := h.Handle(ctx, event); err != nil {
			return fmt.Errorf("failed to handle %s webhook: %w", event.Topic, err)
		}
	}

	if !handled {
		d.logger.Debug().Str("topic", event.Topic).Str("shop", event.Shop).Msg("No handler for webhook topic")
	}
	return nil
}
