package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"archie-builder-credential-broker/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return NewClient(testAPIKey, testAPISecret, "https://broker.example/auth/callback",
		[]string{"read_products", "write_products"}, "2024-10", zerolog.Nop())
}

func TestAuthorizeURL(t *testing.T) {
	c := newTestClient()

	raw := c.AuthorizeURL("acme.myshopify.com", "nonce-1", "https://broker.example/auth/callback")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "acme.myshopify.com", u.Host)
	require.Equal(t, "/admin/oauth/authorize", u.Path)

	q := u.Query()
	require.Equal(t, testAPIKey, q.Get("client_id"))
	require.Equal(t, "read_products,write_products", q.Get("scope"))
	require.Equal(t, "https://broker.example/auth/callback", q.Get("redirect_uri"))
	require.Equal(t, "nonce-1", q.Get("state"))
}

func signedCallback(secret string, params url.Values) *url.URL {
	message, _ := url.QueryUnescape(params.Encode())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))

	signed := url.Values{}
	for k, v := range params {
		signed[k] = v
	}
	signed.Set("hmac", hex.EncodeToString(mac.Sum(nil)))
	return &url.URL{Scheme: "https", Host: "broker.example", Path: "/auth/callback", RawQuery: signed.Encode()}
}

func TestVerifyCallback(t *testing.T) {
	c := newTestClient()
	params := url.Values{}
	params.Set("code", "auth-code")
	params.Set("shop", "acme.myshopify.com")
	params.Set("state", "nonce-1")
	params.Set("timestamp", "1717232400")

	u := signedCallback(testAPISecret, params)
	require.NoError(t, c.VerifyCallback(httptest.NewRequest(http.MethodGet, u.String(), nil)))

	forged := signedCallback("other-secret", params)
	require.ErrorIs(t, c.VerifyCallback(httptest.NewRequest(http.MethodGet, forged.String(), nil)), domain.ErrUnauthenticated)
}

func TestRequestApproval_RejectsBadPrice(t *testing.T) {
	c := newTestClient()

	for _, price := range []string{"", "free", "0", "-5.00"} {
		_, err := c.RequestApproval(context.Background(), "acme.myshopify.com", "shpat_acme", domain.ChargeRequest{
			Plan:  domain.PlanBasic,
			Name:  "Archie 3D Builder Basic",
			Price: price,
		})
		require.Error(t, err, price)
		require.NotErrorIs(t, err, domain.ErrUpstream, price)
	}
}

// redirectTransport sends every request to the test server regardless of shop
type redirectTransport struct {
	host string
}

func (t redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	req.URL.Host = t.host
	return http.DefaultTransport.RoundTrip(req)
}

const chargesPath = "/admin/api/2024-10/recurring_application_charges"

func newStubbedClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	httpClient := &http.Client{Transport: redirectTransport{host: u.Host}}
	return NewClient(testAPIKey, testAPISecret, "https://broker.example/auth/callback",
		[]string{"read_products"}, "2024-10", zerolog.Nop(), goshopify.WithHTTPClient(httpClient))
}

func TestActiveSubscriptions(t *testing.T) {
	c := newStubbedClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, chargesPath+".json", r.URL.Path)
		require.Equal(t, "shpat_token", r.Header.Get("X-Shopify-Access-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"recurring_application_charges":[
			{"id":11,"name":"Archie 3D Builder Premium","status":"active","price":"29.99"},
			{"id":12,"name":"Archie 3D Builder Basic","status":"declined","price":"9.99"}
		]}`))
	})

	subs, err := c.ActiveSubscriptions(context.Background(), "acme.myshopify.com", "shpat_token")
	require.NoError(t, err)
	require.Equal(t, []domain.Subscription{
		{ID: 11, Name: "Archie 3D Builder Premium", Status: "active"},
		{ID: 12, Name: "Archie 3D Builder Basic", Status: "declined"},
	}, subs)
}

func TestActiveSubscriptions_UpstreamError(t *testing.T) {
	c := newStubbedClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors":"Internal Server Error"}`))
	})

	_, err := c.ActiveSubscriptions(context.Background(), "acme.myshopify.com", "shpat_token")
	require.ErrorIs(t, err, domain.ErrUpstream)
}

func TestRequestApproval(t *testing.T) {
	c := newStubbedClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, chargesPath+".json", r.URL.Path)

		var body struct {
			Charge struct {
				Name      string `json:"name"`
				Price     string `json:"price"`
				Currency  string `json:"currency"`
				ReturnURL string `json:"return_url"`
				Test      *bool  `json:"test"`
			} `json:"recurring_application_charge"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Archie 3D Builder Premium", body.Charge.Name)
		require.Equal(t, "29.99", body.Charge.Price)
		require.Equal(t, "USD", body.Charge.Currency)
		require.Equal(t, "https://broker.example/billing/callback?plan=premium", body.Charge.ReturnURL)
		require.NotNil(t, body.Charge.Test)
		require.True(t, *body.Charge.Test)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"recurring_application_charge":{
			"id":21,"name":"Archie 3D Builder Premium","status":"pending","price":"29.99",
			"confirmation_url":"https://acme.myshopify.com/admin/charges/21/confirm_recurring_application_charge"
		}}`))
	})

	confirmation, err := c.RequestApproval(context.Background(), "acme.myshopify.com", "shpat_token", domain.ChargeRequest{
		Plan:      domain.PlanPremium,
		Name:      "Archie 3D Builder Premium",
		Price:     "29.99",
		Currency:  "USD",
		ReturnURL: "https://broker.example/billing/callback?plan=premium",
		Test:      true,
	})
	require.NoError(t, err)
	require.Equal(t, "https://acme.myshopify.com/admin/charges/21/confirm_recurring_application_charge", confirmation)
}

func TestRequestApproval_MissingConfirmationURL(t *testing.T) {
	c := newStubbedClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"recurring_application_charge":{"id":21,"status":"pending","price":"9.99"}}`))
	})

	_, err := c.RequestApproval(context.Background(), "acme.myshopify.com", "shpat_token", domain.ChargeRequest{
		Name:  "Archie 3D Builder Basic",
		Price: "9.99",
	})
	require.ErrorIs(t, err, domain.ErrUpstream)
}

func TestCharge(t *testing.T) {
	c := newStubbedClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case chargesPath + "/21.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"recurring_application_charge":{"id":21,"name":"Archie 3D Builder Premium","status":"declined","price":"29.99"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":"Not Found"}`))
		}
	})
	ctx := context.Background()

	charge, err := c.Charge(ctx, "acme.myshopify.com", "shpat_token", 21)
	require.NoError(t, err)
	require.Equal(t, &domain.Subscription{ID: 21, Name: "Archie 3D Builder Premium", Status: "declined"}, charge)
	require.False(t, charge.IsActive())

	charge, err = c.Charge(ctx, "acme.myshopify.com", "shpat_token", 404)
	require.NoError(t, err)
	require.Nil(t, charge)
}

func TestCancelSubscription(t *testing.T) {
	var deleted []string
	c := newStubbedClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = append(deleted, r.URL.Path)
		switch r.URL.Path {
		case chargesPath + "/21.json":
			w.WriteHeader(http.StatusOK)
		case chargesPath + "/22.json":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":"Forbidden"}`))
		}
	})
	ctx := context.Background()

	require.NoError(t, c.CancelSubscription(ctx, "acme.myshopify.com", "shpat_token", 21))
	// already gone counts as cancelled
	require.NoError(t, c.CancelSubscription(ctx, "acme.myshopify.com", "shpat_token", 22))

	err := c.CancelSubscription(ctx, "acme.myshopify.com", "shpat_token", 23)
	require.ErrorIs(t, err, domain.ErrUpstream)
	var respErr goshopify.ResponseError
	require.True(t, errors.As(err, &respErr))
	require.Equal(t, http.StatusForbidden, respErr.Status)

	require.Equal(t, []string{chargesPath + "/21.json", chargesPath + "/22.json", chargesPath + "/23.json"}, deleted)
}
