package application

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"archie-builder-credential-broker/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestPlanResolve_Priority(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		project    domain.Plan
		billing    []domain.Subscription
		hint       string
		wantPlan   domain.Plan
		wantSource domain.PlanSource
	}{
		{
			name:       "nothing known",
			wantPlan:   domain.PlanFreemium,
			wantSource: domain.PlanSourceBilling,
		},
		{
			name:       "active subscription",
			billing:    []domain.Subscription{{Name: "Archie 3D Builder Basic", Status: "active"}},
			wantPlan:   domain.PlanBasic,
			wantSource: domain.PlanSourceBilling,
		},
		{
			name: "inactive subscriptions ignored",
			billing: []domain.Subscription{
				{Name: "Archie 3D Builder Premium", Status: "declined"},
				{Name: "basic", Status: "ACTIVE"},
			},
			wantPlan:   domain.PlanBasic,
			wantSource: domain.PlanSourceBilling,
		},
		{
			name:       "unknown subscription maps to default",
			billing:    []domain.Subscription{{Name: "Legacy Gold", Status: "active"}},
			wantPlan:   domain.PlanFreemium,
			wantSource: domain.PlanSourceBilling,
		},
		{
			name:       "project plan supersedes billing",
			project:    domain.PlanBasic,
			billing:    []domain.Subscription{{Name: "premium", Status: "active"}},
			wantPlan:   domain.PlanBasic,
			wantSource: domain.PlanSourceStore,
		},
		{
			name:       "hint wins",
			project:    domain.PlanBasic,
			hint:       "premium",
			wantPlan:   domain.PlanPremium,
			wantSource: domain.PlanSourceHint,
		},
		{
			name:       "invalid hint ignored",
			hint:       "platinum",
			billing:    []domain.Subscription{{Name: "premium", Status: "active"}},
			wantPlan:   domain.PlanPremium,
			wantSource: domain.PlanSourceBilling,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			admin := h.install(t, "acme.myshopify.com")
			if tt.project != "" {
				h.provision(t, "acme.myshopify.com", "tenant_acme", tt.project)
			}
			h.billing.subscriptions["acme.myshopify.com"] = tt.billing

			res, err := h.plans.Resolve(ctx, PlanInput{Shop: admin.Shop, AccessToken: admin.AccessToken, Hint: tt.hint})
			require.NoError(t, err)
			require.Equal(t, tt.wantPlan, res.Plan)
			require.Equal(t, tt.wantSource, res.Source)
			require.Equal(t, tt.project != "", res.Project != nil)
		})
	}
}

func TestPlanConfirm_WritesBackOnlyWithProject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := h.install(t, "acme.myshopify.com")

	// no project: nothing to write to
	res, err := h.plans.Confirm(ctx, PlanInput{Shop: admin.Shop, AccessToken: admin.AccessToken, Hint: "basic"})
	require.NoError(t, err)
	require.Equal(t, domain.PlanBasic, res.Plan)
	require.Nil(t, res.Project)

	h.provision(t, "acme.myshopify.com", "tenant_acme", domain.PlanFreemium)
	res, err = h.plans.Confirm(ctx, PlanInput{Shop: admin.Shop, AccessToken: admin.AccessToken, Hint: "premium"})
	require.NoError(t, err)
	require.Equal(t, domain.PlanPremium, res.Plan)

	meta, err := h.metadata.Load(ctx, "tenant_acme")
	require.NoError(t, err)
	require.Equal(t, domain.PlanPremium, meta.PaymentPlan)
}

func TestRequestUpgrade(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := h.install(t, "acme.myshopify.com")

	outcome := h.plans.RequestUpgrade(ctx, admin, "premium")
	require.Nil(t, outcome.Failure)
	require.Equal(t, "https://acme.myshopify.com/admin/charges/confirm", outcome.Redirect.URL)
	require.Len(t, h.billing.requests, 1)

	charge := h.billing.requests[0]
	require.Equal(t, domain.PlanPremium, charge.Plan)
	require.Equal(t, "29.99", charge.Price)
	require.True(t, charge.Test)

	returnURL, err := url.Parse(charge.ReturnURL)
	require.NoError(t, err)
	q := returnURL.Query()
	require.Equal(t, "acme.myshopify.com", q.Get("shop"))
	require.Equal(t, "premium", q.Get("plan"))
	require.True(t, h.plans.VerifyHint(q.Get("shop"), q.Get("plan"), q.Get("exp"), q.Get("sig")))
}

func TestRequestUpgrade_Outcomes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := h.install(t, "acme.myshopify.com")

	outcome := h.plans.RequestUpgrade(ctx, admin, "platinum")
	require.Nil(t, outcome.Redirect)
	require.Equal(t, "Unknown plan", outcome.Failure.Message)

	// the free plan needs no charge and goes straight to the callback
	outcome = h.plans.RequestUpgrade(ctx, admin, "freemium")
	require.Nil(t, outcome.Failure)
	require.Contains(t, outcome.Redirect.URL, "https://broker.example/billing/callback?")
	require.Empty(t, h.billing.requests)
	require.Empty(t, h.billing.cancelled)

	h.billing.err = errBillingDown
	outcome = h.plans.RequestUpgrade(ctx, admin, "basic")
	require.Nil(t, outcome.Redirect)
	require.Equal(t, "Billing request failed", outcome.Failure.Message)
	require.Contains(t, outcome.Failure.Details, "billing unavailable")
}

func TestRequestUpgrade_DowngradeCancelsPaidCharges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := h.install(t, "acme.myshopify.com")
	h.billing.subscriptions["acme.myshopify.com"] = []domain.Subscription{
		{ID: 11, Name: "Archie 3D Builder Premium", Status: "active"},
		{ID: 12, Name: "Archie 3D Builder Basic", Status: "declined"},
		{ID: 13, Name: "Legacy Gold", Status: "active"},
	}

	outcome := h.plans.RequestUpgrade(ctx, admin, "freemium")
	require.Nil(t, outcome.Failure)
	require.NotNil(t, outcome.Redirect)
	require.Equal(t, []uint64{11}, h.billing.cancelled)

	h.billing.err = errBillingDown
	outcome = h.plans.RequestUpgrade(ctx, admin, "freemium")
	require.Nil(t, outcome.Redirect)
	require.Equal(t, "Billing cancellation failed", outcome.Failure.Message)
	require.Contains(t, outcome.Failure.Details, "billing unavailable")
}

func TestVerifyHint(t *testing.T) {
	advance := setClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	h := newHarness(t)
	u, err := url.Parse(h.plans.ReturnURL("acme.myshopify.com", domain.PlanBasic))
	require.NoError(t, err)
	q := u.Query()
	exp, sig := q.Get("exp"), q.Get("sig")
	require.Equal(t, strconv.FormatInt(now().Add(DefaultReturnTTL).Unix(), 10), exp)

	require.True(t, h.plans.VerifyHint("acme.myshopify.com", "basic", exp, sig))
	require.False(t, h.plans.VerifyHint("acme.myshopify.com", "premium", exp, sig))
	require.False(t, h.plans.VerifyHint("other.myshopify.com", "basic", exp, sig))
	require.False(t, h.plans.VerifyHint("acme.myshopify.com", "basic", exp, ""))
	require.False(t, h.plans.VerifyHint("acme.myshopify.com", "basic", exp, "zz"))
	require.False(t, h.plans.VerifyHint("acme.myshopify.com", "basic", "", sig))

	// extending the expiry breaks the signature
	later := strconv.FormatInt(now().Add(24*time.Hour).Unix(), 10)
	require.False(t, h.plans.VerifyHint("acme.myshopify.com", "basic", later, sig))

	advance(DefaultReturnTTL + time.Second)
	require.False(t, h.plans.VerifyHint("acme.myshopify.com", "basic", exp, sig))
}

func TestConfirmCallback(t *testing.T) {
	ctx := context.Background()
	setClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	signed := func(h *harness, plan domain.Plan) url.Values {
		u, err := url.Parse(h.plans.ReturnURL("acme.myshopify.com", plan))
		require.NoError(t, err)
		return u.Query()
	}

	tests := []struct {
		name       string
		plan       domain.Plan
		chargeID   string
		charges    map[uint64]domain.Subscription
		billing    []domain.Subscription
		wantPlan   domain.Plan
		wantSource domain.PlanSource
	}{
		{
			name:       "approved charge",
			plan:       domain.PlanPremium,
			chargeID:   "7",
			charges:    map[uint64]domain.Subscription{7: {ID: 7, Name: "Archie 3D Builder Premium", Status: "active"}},
			wantPlan:   domain.PlanPremium,
			wantSource: domain.PlanSourceHint,
		},
		{
			name:       "declined charge falls through to billing",
			plan:       domain.PlanPremium,
			chargeID:   "7",
			charges:    map[uint64]domain.Subscription{7: {ID: 7, Name: "Archie 3D Builder Premium", Status: "declined"}},
			billing:    []domain.Subscription{{ID: 3, Name: "Archie 3D Builder Basic", Status: "active"}},
			wantPlan:   domain.PlanBasic,
			wantSource: domain.PlanSourceBilling,
		},
		{
			name:       "charge for another plan",
			plan:       domain.PlanPremium,
			chargeID:   "7",
			charges:    map[uint64]domain.Subscription{7: {ID: 7, Name: "Archie 3D Builder Basic", Status: "active"}},
			wantPlan:   domain.PlanFreemium,
			wantSource: domain.PlanSourceBilling,
		},
		{
			name:       "unknown charge",
			plan:       domain.PlanBasic,
			chargeID:   "99",
			wantPlan:   domain.PlanFreemium,
			wantSource: domain.PlanSourceBilling,
		},
		{
			name:       "paid plan without charge id",
			plan:       domain.PlanBasic,
			wantPlan:   domain.PlanFreemium,
			wantSource: domain.PlanSourceBilling,
		},
		{
			name:       "free plan needs no charge",
			plan:       domain.PlanFreemium,
			billing:    []domain.Subscription{{ID: 3, Name: "Archie 3D Builder Basic", Status: "active"}},
			wantPlan:   domain.PlanFreemium,
			wantSource: domain.PlanSourceHint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			admin := h.install(t, "acme.myshopify.com")
			for id, charge := range tt.charges {
				h.billing.charges[id] = charge
			}
			h.billing.subscriptions["acme.myshopify.com"] = tt.billing

			q := signed(h, tt.plan)
			res, err := h.plans.ConfirmCallback(ctx, CallbackInput{
				Shop:        admin.Shop,
				AccessToken: admin.AccessToken,
				Plan:        q.Get("plan"),
				Expires:     q.Get("exp"),
				Signature:   q.Get("sig"),
				ChargeID:    tt.chargeID,
			})
			require.NoError(t, err)
			require.Equal(t, tt.wantPlan, res.Plan)
			require.Equal(t, tt.wantSource, res.Source)
		})
	}
}

func TestConfirmCallback_ExpiredSignature(t *testing.T) {
	ctx := context.Background()
	advance := setClock(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	h := newHarness(t)
	admin := h.install(t, "acme.myshopify.com")
	h.provision(t, "acme.myshopify.com", "tenant_acme", domain.PlanBasic)
	h.billing.charges[7] = domain.Subscription{ID: 7, Name: "Archie 3D Builder Premium", Status: "active"}

	u, err := url.Parse(h.plans.ReturnURL(admin.Shop, domain.PlanPremium))
	require.NoError(t, err)
	q := u.Query()
	in := CallbackInput{
		Shop:        admin.Shop,
		AccessToken: admin.AccessToken,
		Plan:        q.Get("plan"),
		Expires:     q.Get("exp"),
		Signature:   q.Get("sig"),
		ChargeID:    "7",
	}

	advance(time.Hour)
	res, err := h.plans.ConfirmCallback(ctx, in)
	require.NoError(t, err)
	require.Equal(t, domain.PlanBasic, res.Plan)
	require.Equal(t, domain.PlanSourceStore, res.Source)

	meta, err := h.metadata.Load(ctx, "tenant_acme")
	require.NoError(t, err)
	require.Equal(t, domain.PlanBasic, meta.PaymentPlan)
}

func TestConfirmCallback_BillingErrorDropsHint(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := h.install(t, "acme.myshopify.com")
	h.provision(t, "acme.myshopify.com", "tenant_acme", domain.PlanFreemium)

	u, err := url.Parse(h.plans.ReturnURL(admin.Shop, domain.PlanPremium))
	require.NoError(t, err)
	q := u.Query()

	h.billing.err = errBillingDown
	res, err := h.plans.ConfirmCallback(ctx, CallbackInput{
		Shop:        admin.Shop,
		AccessToken: admin.AccessToken,
		Plan:        q.Get("plan"),
		Expires:     q.Get("exp"),
		Signature:   q.Get("sig"),
		ChargeID:    "7",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PlanFreemium, res.Plan)
	require.Equal(t, domain.PlanSourceStore, res.Source)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := h.install(t, "acme.myshopify.com")

	status, err := h.plans.Status(ctx, admin)
	require.NoError(t, err)
	require.False(t, status.HasProject)
	require.Equal(t, domain.PlanFreemium, status.Plan)

	h.provision(t, "acme.myshopify.com", "tenant_acme", domain.PlanPremium)
	status, err = h.plans.Status(ctx, admin)
	require.NoError(t, err)
	require.True(t, status.HasProject)
	require.Equal(t, "tenant_acme", status.DBName)
	require.Equal(t, domain.PlanPremium, status.Plan)
	require.Equal(t, domain.PlanSourceStore, status.PlanSource)
}
