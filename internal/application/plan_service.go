package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/metrics"
	"archie-builder-credential-broker/internal/ports"

	"github.com/rs/zerolog"
)

// PlanPricing configures the recurring charge offered for each paid plan
type PlanPricing struct {
	Prices   map[domain.Plan]string
	Currency string
	Test     bool
}

// PlanService reconciles the callback hint, the stored project plan and the
// live billing state into one entitlement tier
type PlanService struct {
	billing     ports.BillingClient
	projects    ports.ProjectLocator
	metadata    ports.StoreMetadataRepository
	pricing     PlanPricing
	callbackURL string
	secret      []byte
	returnTTL   time.Duration
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// DefaultReturnTTL is how long a signed billing return URL stays valid
const DefaultReturnTTL = 15 * time.Minute

// NewPlanService creates a plan service. callbackURL is the absolute URL of
// the billing callback, secret signs the plan hints carried by it and
// returnTTL bounds their validity (non-positive means DefaultReturnTTL).
func NewPlanService(
	billing ports.BillingClient,
	projects ports.ProjectLocator,
	metadata ports.StoreMetadataRepository,
	pricing PlanPricing,
	callbackURL string,
	secret string,
	returnTTL time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *PlanService {
	if returnTTL <= 0 {
		returnTTL = DefaultReturnTTL
	}
	return &PlanService{
		billing:     billing,
		projects:    projects,
		metadata:    metadata,
		pricing:     pricing,
		callbackURL: callbackURL,
		secret:      []byte(secret),
		returnTTL:   returnTTL,
		metrics:     m,
		logger:      logger,
	}
}

// PlanInput is what plan resolution knows about a tenant
type PlanInput struct {
	Shop        string
	AccessToken string
	// Hint is a plan token carried back by the billing redirect. Callers pass
	// it only once its signature has been verified.
	Hint string
}

// PlanResolution is a resolved plan and the input that decided it
type PlanResolution struct {
	Plan    domain.Plan
	Source  domain.PlanSource
	Project *domain.Project
}

// Resolve computes the current plan. Priority: hint, stored project plan,
// live billing query.
func (s *PlanService) Resolve(ctx context.Context, in PlanInput) (*PlanResolution, error) {
	project, err := s.projects.FindByShop(ctx, in.Shop)
	if err != nil {
		return nil, fmt.Errorf("failed to look up project: %w", err)
	}

	res := &PlanResolution{Project: project}

	if plan, ok := domain.ParsePlan(in.Hint); ok {
		res.Plan, res.Source = plan, domain.PlanSourceHint
		s.metrics.PlanResolved(string(res.Source), string(res.Plan))
		return res, nil
	}

	if project != nil {
		meta, err := s.metadata.Load(ctx, project.DBName)
		if err != nil {
			return nil, fmt.Errorf("failed to load store metadata: %w", err)
		}
		if meta != nil {
			if plan, ok := domain.ParsePlan(string(meta.PaymentPlan)); ok {
				res.Plan, res.Source = plan, domain.PlanSourceStore
				s.metrics.PlanResolved(string(res.Source), string(res.Plan))
				return res, nil
			}
		}
	}

	plan, err := s.billingPlan(ctx, in.Shop, in.AccessToken)
	if err != nil {
		return nil, err
	}
	res.Plan, res.Source = plan, domain.PlanSourceBilling
	s.metrics.PlanResolved(string(res.Source), string(res.Plan))
	return res, nil
}

// Confirm resolves the plan and persists it to the project when one exists.
// Without a project the plan only travels inside the next create record.
func (s *PlanService) Confirm(ctx context.Context, in PlanInput) (*PlanResolution, error) {
	res, err := s.Resolve(ctx, in)
	if err != nil {
		return nil, err
	}

	if res.Project == nil || res.Source == domain.PlanSourceStore {
		return res, nil
	}

	if err := s.metadata.SavePlan(ctx, res.Project.DBName, res.Plan); err != nil {
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}

	s.logger.Info().
		Str("shop", in.Shop).
		Str("dbName", res.Project.DBName).
		Str("plan", string(res.Plan)).
		Str("source", string(res.Source)).
		Msg("Plan persisted to project")
	return res, nil
}

func (s *PlanService) billingPlan(ctx context.Context, shop, accessToken string) (domain.Plan, error) {
	if accessToken == "" {
		return domain.DefaultPlan, nil
	}

	subs, err := s.billing.ActiveSubscriptions(ctx, shop, accessToken)
	if err != nil {
		return "", fmt.Errorf("failed to query subscriptions: %w", err)
	}

	best := domain.DefaultPlan
	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		if plan, ok := planFromChargeName(sub.Name); ok && planRank(plan) > planRank(best) {
			best = plan
		}
	}
	return best, nil
}

// RequestUpgrade asks the platform for a recurring charge for plan and returns
// where the merchant must go next
func (s *PlanService) RequestUpgrade(ctx context.Context, admin *domain.AdminSession, planToken string) domain.BillingOutcome {
	plan, ok := domain.ParsePlan(planToken)
	if !ok {
		return domain.BillingOutcome{Failure: &domain.BillingFailure{
			Message: "Unknown plan",
			Details: fmt.Sprintf("%q is not one of %v", planToken, domain.Plans),
		}}
	}

	returnURL := s.ReturnURL(admin.Shop, plan)
	if !plan.IsPaid() {
		if err := s.cancelPaidCharges(ctx, admin); err != nil {
			s.logger.Error().Err(err).Str("shop", admin.Shop).Msg("Failed to cancel paid charges")
			return domain.BillingOutcome{Failure: &domain.BillingFailure{
				Message: "Billing cancellation failed",
				Details: err.Error(),
			}}
		}
		return domain.BillingOutcome{Redirect: &domain.BillingRedirect{URL: returnURL}}
	}

	price, ok := s.pricing.Prices[plan]
	if !ok {
		return domain.BillingOutcome{Failure: &domain.BillingFailure{
			Message: "Plan is not available",
			Details: fmt.Sprintf("no price configured for %s", plan),
		}}
	}

	confirmationURL, err := s.billing.RequestApproval(ctx, admin.Shop, admin.AccessToken, domain.ChargeRequest{
		Plan:      plan,
		Name:      chargeName(plan),
		Price:     price,
		Currency:  s.pricing.Currency,
		ReturnURL: returnURL,
		Test:      s.pricing.Test,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("shop", admin.Shop).Str("plan", string(plan)).Msg("Billing request failed")
		return domain.BillingOutcome{Failure: &domain.BillingFailure{
			Message: "Billing request failed",
			Details: err.Error(),
		}}
	}

	s.logger.Info().Str("shop", admin.Shop).Str("plan", string(plan)).Msg("Billing approval requested")
	return domain.BillingOutcome{Redirect: &domain.BillingRedirect{URL: confirmationURL}}
}

// cancelPaidCharges cancels every active charge of a paid plan so that a
// downgrade stops recurring billing
func (s *PlanService) cancelPaidCharges(ctx context.Context, admin *domain.AdminSession) error {
	subs, err := s.billing.ActiveSubscriptions(ctx, admin.Shop, admin.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to query subscriptions: %w", err)
	}
	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		if plan, ok := planFromChargeName(sub.Name); !ok || !plan.IsPaid() {
			continue
		}
		if err := s.billing.CancelSubscription(ctx, admin.Shop, admin.AccessToken, sub.ID); err != nil {
			return fmt.Errorf("failed to cancel charge %d: %w", sub.ID, err)
		}
		s.logger.Info().Str("shop", admin.Shop).Uint64("chargeId", sub.ID).Str("charge", sub.Name).Msg("Paid charge cancelled for downgrade")
	}
	return nil
}

// ReturnURL builds the signed billing callback URL for shop and plan. The
// signature expires after the configured return TTL.
func (s *PlanService) ReturnURL(shop string, plan domain.Plan) string {
	exp := strconv.FormatInt(now().Add(s.returnTTL).Unix(), 10)
	q := url.Values{}
	q.Set("shop", shop)
	q.Set("plan", string(plan))
	q.Set("exp", exp)
	q.Set("sig", s.sign(shop, string(plan), exp))
	return s.callbackURL + "?" + q.Encode()
}

// VerifyHint reports whether sig was produced by ReturnURL for shop, plan and
// exp, and exp has not passed
func (s *PlanService) VerifyHint(shop, plan, exp, sig string) bool {
	if sig == "" {
		return false
	}
	expiresAt, err := strconv.ParseInt(exp, 10, 64)
	if err != nil || now().Unix() > expiresAt {
		return false
	}
	expected, err := hex.DecodeString(s.sign(shop, plan, exp))
	if err != nil {
		return false
	}
	actual, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, actual)
}

func (s *PlanService) sign(shop, plan, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(shop + "\n" + plan + "\n" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}

// CallbackInput is the billing callback as received from the platform
type CallbackInput struct {
	Shop        string
	AccessToken string
	Plan        string
	Expires     string
	Signature   string
	ChargeID    string
}

// ConfirmCallback confirms the plan after the merchant returns from the
// approval page. The plan hint counts only when its signature is valid and
// unexpired and, for paid plans, the referenced charge is active and bills
// that plan; otherwise the plan is resolved as if no hint was given.
func (s *PlanService) ConfirmCallback(ctx context.Context, in CallbackInput) (*PlanResolution, error) {
	return s.Confirm(ctx, PlanInput{
		Shop:        in.Shop,
		AccessToken: in.AccessToken,
		Hint:        s.trustedHint(ctx, in),
	})
}

func (s *PlanService) trustedHint(ctx context.Context, in CallbackInput) string {
	if in.Plan == "" {
		return ""
	}
	log := s.logger.With().Str("shop", in.Shop).Str("plan", in.Plan).Logger()

	if !s.VerifyHint(in.Shop, in.Plan, in.Expires, in.Signature) {
		log.Warn().Msg("Ignoring unsigned or expired plan hint")
		return ""
	}
	plan, ok := domain.ParsePlan(in.Plan)
	if !ok {
		return ""
	}
	if !plan.IsPaid() {
		return string(plan)
	}

	chargeID, err := strconv.ParseUint(in.ChargeID, 10, 64)
	if err != nil || chargeID == 0 {
		log.Warn().Str("chargeId", in.ChargeID).Msg("Ignoring paid plan hint without a charge")
		return ""
	}
	charge, err := s.billing.Charge(ctx, in.Shop, in.AccessToken, chargeID)
	if err != nil {
		log.Error().Err(err).Uint64("chargeId", chargeID).Msg("Failed to verify charge, falling back to billing query")
		return ""
	}
	if charge == nil || !charge.IsActive() {
		status := "missing"
		if charge != nil {
			status = charge.Status
		}
		log.Info().Uint64("chargeId", chargeID).Str("status", status).Msg("Charge not active, plan hint ignored")
		return ""
	}
	if charged, ok := planFromChargeName(charge.Name); !ok || charged != plan {
		log.Warn().Uint64("chargeId", chargeID).Str("charge", charge.Name).Msg("Charge does not bill the hinted plan")
		return ""
	}
	return string(plan)
}

// DashboardStatus is what the embedded dashboard renders
type DashboardStatus struct {
	Shop       string            `json:"shop"`
	Plan       domain.Plan       `json:"plan"`
	PlanSource domain.PlanSource `json:"planSource"`
	HasProject bool              `json:"hasProject"`
	DBName     string            `json:"dbName,omitempty"`
}

// Status resolves the dashboard view of the authenticated tenant
func (s *PlanService) Status(ctx context.Context, admin *domain.AdminSession) (*DashboardStatus, error) {
	res, err := s.Resolve(ctx, PlanInput{Shop: admin.Shop, AccessToken: admin.AccessToken})
	if err != nil {
		return nil, err
	}

	status := &DashboardStatus{
		Shop:       admin.Shop,
		Plan:       res.Plan,
		PlanSource: res.Source,
		HasProject: res.Project != nil,
	}
	if res.Project != nil {
		status.DBName = res.Project.DBName
	}
	return status, nil
}

const chargePrefix = "Archie 3D Builder "

func chargeName(plan domain.Plan) string {
	return chargePrefix + strings.ToUpper(string(plan[:1])) + string(plan[1:])
}

func planFromChargeName(name string) (domain.Plan, bool) {
	if plan, ok := domain.ParsePlan(name); ok {
		return plan, true
	}
	return domain.ParsePlan(strings.TrimPrefix(name, chargePrefix))
}

func planRank(plan domain.Plan) int {
	for i, p := range domain.Plans {
		if p == plan {
			return i
		}
	}
	return -1
}
