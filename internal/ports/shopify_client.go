package ports

import (
	"context"
	"net/http"

	"archie-builder-credential-broker/internal/domain"
)

// BillingClient queries and requests app subscriptions on the platform
type BillingClient interface {
	ActiveSubscriptions(ctx context.Context, shop string, accessToken string) ([]domain.Subscription, error)
	// Charge returns nil, nil when the shop has no charge with id
	Charge(ctx context.Context, shop string, accessToken string, id uint64) (*domain.Subscription, error)
	// RequestApproval creates a pending charge and returns its confirmation URL
	RequestApproval(ctx context.Context, shop string, accessToken string, charge domain.ChargeRequest) (string, error)
	CancelSubscription(ctx context.Context, shop string, accessToken string, id uint64) error
}

// AdminAuthenticator authenticates embedded admin requests
type AdminAuthenticator interface {
	AuthenticateAdmin(r *http.Request) (*domain.AdminSession, error)
}

// WebhookAuthenticator verifies and decodes webhook deliveries
type WebhookAuthenticator interface {
	AuthenticateWebhook(r *http.Request) (*domain.WebhookEvent, error)
}

// OAuthClient performs the platform install handshake
type OAuthClient interface {
	AuthorizeURL(shop string, state string, redirectURI string) string
	VerifyCallback(r *http.Request) error
	ExchangeToken(ctx context.Context, shop string, code string) (string, error)
}
