package shopify

import (
	"fmt"
	"io"
	"net/http"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// Webhook delivery headers
const (
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderHmac       = "X-Shopify-Hmac-Sha256"
)

// WebhookVerifier authenticates webhook deliveries by their HMAC header
type WebhookVerifier struct {
	app    goshopify.App
	logger zerolog.Logger
}

// NewWebhookVerifier creates a verifier for deliveries signed with apiSecret
func NewWebhookVerifier(apiKey, apiSecret string, logger zerolog.Logger) *WebhookVerifier {
	return &WebhookVerifier{
		app:    goshopify.App{ApiKey: apiKey, ApiSecret: apiSecret},
		logger: logger,
	}
}

var _ ports.WebhookAuthenticator = (*WebhookVerifier)(nil)

// AuthenticateWebhook verifies the delivery and decodes its envelope
func (v *WebhookVerifier) AuthenticateWebhook(r *http.Request) (*domain.WebhookEvent, error) {
	if r.Header.Get(HeaderHmac) == "" || !v.app.VerifyWebhookRequest(r) {
		v.logger.Warn().Str("topic", r.Header.Get(HeaderTopic)).Msg("Webhook signature rejected")
		return nil, domain.ErrUnauthenticated
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook body: %w", err)
	}

	topic := r.Header.Get(HeaderTopic)
	if topic == "" {
		return nil, &domain.MissingFieldError{Field: HeaderTopic}
	}

	shop, _ := domain.NormalizeShop(r.Header.Get(HeaderShopDomain))
	return &domain.WebhookEvent{
		Topic:   topic,
		Shop:    shop,
		Payload: payload,
	}, nil
}
