package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"archie-builder-credential-broker/internal/application"
	"archie-builder-credential-broker/internal/domain"

	"github.com/rs/zerolog"
)

// ScopesUpdateHandler keeps the stored offline session scope in sync
type ScopesUpdateHandler struct {
	logger  zerolog.Logger
	install *application.InstallService
}

// NewScopesUpdateHandler creates an app/scopes_update handler
func NewScopesUpdateHandler(logger zerolog.Logger, install *application.InstallService) *ScopesUpdateHandler {
	return &ScopesUpdateHandler{
		logger:  logger,
		install: install,
	}
}

func (h *ScopesUpdateHandler) CanHandle(topic string) bool {
	return topic == "app/scopes_update"
}

func (h *ScopesUpdateHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload struct {
		Previous []string `json:"previous"`
		Current  []string `json:"current"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse scopes update payload: %w", err)
	}

	h.logger.Debug().Str("shop", event.Shop).Strs("previous", payload.Previous).Strs("current", payload.Current).Msg("Processing scopes update")
	return h.install.UpdateScope(ctx, event.Shop, payload.Current)
}
