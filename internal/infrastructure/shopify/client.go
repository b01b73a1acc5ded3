package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Client adapts go-shopify to the billing and OAuth ports
type Client struct {
	apiKey     string
	app        goshopify.App
	apiVersion string
	opts       []goshopify.Option
	logger     zerolog.Logger
}

// NewClient creates a Shopify client adapter. opts are applied to every
// per-shop API client it creates.
func NewClient(apiKey, apiSecret, redirectURL string, scopes []string, apiVersion string, logger zerolog.Logger, opts ...goshopify.Option) *Client {
	app := goshopify.App{
		ApiKey:      apiKey,
		ApiSecret:   apiSecret,
		RedirectUrl: redirectURL,
		Scope:       strings.Join(scopes, ","),
	}
	return &Client{
		apiKey:     apiKey,
		app:        app,
		apiVersion: apiVersion,
		opts:       opts,
		logger:     logger,
	}
}

var (
	_ ports.BillingClient = (*Client)(nil)
	_ ports.OAuthClient   = (*Client)(nil)
)

// createClient is a helper to create a goshopify client
func (c *Client) createClient(shopDomain string, accessToken string) (*goshopify.Client, error) {
	opts := append([]goshopify.Option{}, c.opts...)
	if c.apiVersion != "" {
		opts = append(opts, goshopify.WithVersion(c.apiVersion))
	}
	client, err := goshopify.NewClient(c.app, shopDomain, accessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func toSubscription(ch goshopify.RecurringApplicationCharge) domain.Subscription {
	return domain.Subscription{ID: ch.Id, Name: ch.Name, Status: ch.Status}
}

func isNotFound(err error) bool {
	var respErr goshopify.ResponseError
	return errors.As(err, &respErr) && respErr.Status == http.StatusNotFound
}

// Billing API

func (c *Client) ActiveSubscriptions(ctx context.Context, shopDomain string, accessToken string) ([]domain.Subscription, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, domain.Upstream("list charges", err)
	}

	charges, err := client.RecurringApplicationCharge.List(ctx, nil)
	if err != nil {
		return nil, domain.Upstream("list charges", err)
	}

	subs := make([]domain.Subscription, 0, len(charges))
	for _, ch := range charges {
		subs = append(subs, toSubscription(ch))
	}
	return subs, nil
}

// Charge returns one recurring charge, or nil, nil when the shop has no charge with id
func (c *Client) Charge(ctx context.Context, shopDomain string, accessToken string, id uint64) (*domain.Subscription, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, domain.Upstream("get charge", err)
	}

	charge, err := client.RecurringApplicationCharge.Get(ctx, id, nil)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Upstream("get charge", err)
	}
	if charge == nil {
		return nil, nil
	}
	sub := toSubscription(*charge)
	return &sub, nil
}

func (c *Client) RequestApproval(ctx context.Context, shopDomain string, accessToken string, charge domain.ChargeRequest) (string, error) {
	price, err := decimal.NewFromString(charge.Price)
	if err != nil {
		return "", fmt.Errorf("invalid price %q: %w", charge.Price, err)
	}
	if price.Sign() <= 0 {
		return "", fmt.Errorf("price must be positive, got %s", price)
	}

	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return "", domain.Upstream("create charge", err)
	}

	test := charge.Test
	created, err := client.RecurringApplicationCharge.Create(ctx, goshopify.RecurringApplicationCharge{
		Name:      charge.Name,
		Price:     &price,
		Currency:  charge.Currency,
		ReturnURL: charge.ReturnURL,
		Test:      &test,
	})
	if err != nil {
		return "", domain.Upstream("create charge", err)
	}
	if created == nil || created.ConfirmationURL == "" {
		return "", domain.Upstream("create charge", fmt.Errorf("response carried no confirmation url"))
	}

	c.logger.Info().
		Str("shop", shopDomain).
		Uint64("chargeId", created.Id).
		Str("price", price.StringFixed(2)).
		Bool("test", test).
		Msg("Recurring charge created")
	return created.ConfirmationURL, nil
}

// CancelSubscription cancels a recurring charge. A charge that no longer exists counts as cancelled.
func (c *Client) CancelSubscription(ctx context.Context, shopDomain string, accessToken string, id uint64) error {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return domain.Upstream("cancel charge", err)
	}

	if err := client.RecurringApplicationCharge.Delete(ctx, id); err != nil && !isNotFound(err) {
		return domain.Upstream("cancel charge", err)
	}

	c.logger.Info().Str("shop", shopDomain).Uint64("chargeId", id).Msg("Recurring charge cancelled")
	return nil
}

// Authentication methods

func (c *Client) AuthorizeURL(shop string, state string, redirectURI string) string {
	// built by hand so redirect_uri can differ per request
	return fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		shop,
		url.QueryEscape(c.apiKey),
		url.QueryEscape(c.app.Scope),
		url.QueryEscape(redirectURI),
		url.QueryEscape(state),
	)
}

// VerifyCallback checks the hmac Shopify adds to the install callback
func (c *Client) VerifyCallback(r *http.Request) error {
	ok, err := c.app.VerifyAuthorizationURL(r.URL)
	if err != nil {
		return fmt.Errorf("failed to verify callback: %w: %w", domain.ErrUnauthenticated, err)
	}
	if !ok {
		return domain.ErrUnauthenticated
	}
	return nil
}

func (c *Client) ExchangeToken(ctx context.Context, shop string, code string) (string, error) {
	token, err := c.app.GetAccessToken(ctx, shop, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}
	return token, nil
}
