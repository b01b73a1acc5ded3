package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"archie-builder-credential-broker/internal/application"
	"archie-builder-credential-broker/internal/domain"

	"github.com/rs/zerolog"
)

// ShopRedactHandler erases shop data 48 hours after uninstall
type ShopRedactHandler struct {
	logger    zerolog.Logger
	lifecycle *application.LifecycleService
}

// NewShopRedactHandler creates a shop/redact handler
func NewShopRedactHandler(logger zerolog.Logger, lifecycle *application.LifecycleService) *ShopRedactHandler {
	return &ShopRedactHandler{
		logger:    logger,
		lifecycle: lifecycle,
	}
}

func (h *ShopRedactHandler) CanHandle(topic string) bool {
	return topic == "shop/redact"
}

func (h *ShopRedactHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload struct {
		ShopID     int64  `json:"shop_id"`
		ShopDomain string `json:"shop_domain"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse shop redact payload: %w", err)
	}

	shop := payload.ShopDomain
	if shop == "" {
		shop = event.Shop
	}

	report := h.lifecycle.Offboard(ctx, shop)
	h.logger.Info().
		Str("shop", shop).
		Int64("shopId", payload.ShopID).
		Bool("complete", report.Complete()).
		Msg("Shop data redacted")
	return nil
}
