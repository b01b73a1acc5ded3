package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"archie-builder-credential-broker/internal/domain"

	"github.com/rs/zerolog"
)

// CustomerPrivacyHandler acknowledges customer data requests. The broker
// stores no customer data, so there is nothing to export or erase.
type CustomerPrivacyHandler struct {
	logger zerolog.Logger
}

// NewCustomerPrivacyHandler creates a new customer privacy webhook handler
func NewCustomerPrivacyHandler(logger zerolog.Logger) *CustomerPrivacyHandler {
	return &CustomerPrivacyHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *CustomerPrivacyHandler) CanHandle(topic string) bool {
	return topic == "customers/data_request" ||
		topic == "customers/redact"
}

// Handle logs the request for the compliance trail
func (h *CustomerPrivacyHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload struct {
		ShopDomain string `json:"shop_domain"`
		Customer   struct {
			ID int64 `json:"id"`
		} `json:"customer"`
		OrdersRequested []int64 `json:"orders_requested"`
		OrdersToRedact  []int64 `json:"orders_to_redact"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse customer privacy payload: %w", err)
	}

	shop := payload.ShopDomain
	if shop == "" {
		shop = event.Shop
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shop).
		Int64("customerId", payload.Customer.ID).
		Int("orders", len(payload.OrdersRequested)+len(payload.OrdersToRedact)).
		Msg("Customer privacy request acknowledged, no customer data held")
	return nil
}
