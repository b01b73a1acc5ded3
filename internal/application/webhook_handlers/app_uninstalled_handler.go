package webhook_handlers

import (
	"context"
	"encoding/json"

	"archie-builder-credential-broker/internal/application"
	"archie-builder-credential-broker/internal/domain"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler offboards a shop when the app is uninstalled
type AppUninstalledHandler struct {
	logger    zerolog.Logger
	lifecycle *application.LifecycleService
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(logger zerolog.Logger, lifecycle *application.LifecycleService) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		logger:    logger,
		lifecycle: lifecycle,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Handle offboards the shop. Offboarding failures are logged but never
// returned so the platform does not redeliver forever.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain := event.Shop
	if shopDomain == "" {
		var shopData struct {
			Domain          string `json:"domain"`
			MyshopifyDomain string `json:"myshopify_domain"`
		}
		if err := json.Unmarshal(event.Payload, &shopData); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to parse app uninstalled webhook payload")
		}
		shopDomain = shopData.MyshopifyDomain
		if shopDomain == "" {
			shopDomain = shopData.Domain
		}
	}
	if shopDomain == "" {
		h.logger.Warn().Str("topic", event.Topic).Msg("App uninstalled webhook without a shop")
		return nil
	}

	h.logger.Info().Str("topic", event.Topic).Str("shop", shopDomain).Msg("Processing app uninstalled webhook event")

	report := h.lifecycle.Offboard(ctx, shopDomain)
	if !report.Complete() {
		h.logger.Warn().Str("shop", shopDomain).Int("failures", report.Failures).Msg("App uninstalled cleanup incomplete")
	}
	return nil
}
