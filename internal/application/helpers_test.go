package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/docstore"
	"archie-builder-credential-broker/internal/infrastructure/lock"
	"archie-builder-credential-broker/internal/infrastructure/repository"
	"archie-builder-credential-broker/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testAppDB  = "shopify_app"
	testAPIKey = "app-api-key"
)

type fakeBilling struct {
	mu            sync.Mutex
	subscriptions map[string][]domain.Subscription
	charges       map[uint64]domain.Subscription
	requests      []domain.ChargeRequest
	cancelled     []uint64
	err           error
}

func (f *fakeBilling) ActiveSubscriptions(ctx context.Context, shop, accessToken string) ([]domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.subscriptions[shop], nil
}

func (f *fakeBilling) RequestApproval(ctx context.Context, shop, accessToken string, charge domain.ChargeRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests = append(f.requests, charge)
	return "https://" + shop + "/admin/charges/confirm", nil
}

func (f *fakeBilling) Charge(ctx context.Context, shop, accessToken string, id uint64) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	charge, ok := f.charges[id]
	if !ok {
		return nil, nil
	}
	return &charge, nil
}

func (f *fakeBilling) CancelSubscription(ctx context.Context, shop, accessToken string, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

// harness wires the services over one in-memory document store
type harness struct {
	store       *docstore.MemoryStore
	billing     *fakeBilling
	sessions    *repository.SessionRepository
	appData     *repository.AppDataRepository
	tickets     *repository.TicketRepository
	metadata    *repository.StoreMetadataRepository
	plans       *PlanService
	credentials *CredentialsService
	ticketSvc   *TicketService
	lifecycle   *LifecycleService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zerolog.Nop()
	store := docstore.NewMemoryStore()
	billing := &fakeBilling{
		subscriptions: map[string][]domain.Subscription{},
		charges:       map[uint64]domain.Subscription{},
	}

	h := &harness{
		store:    store,
		billing:  billing,
		sessions: repository.NewSessionRepository(store, testAppDB, logger),
		appData:  repository.NewAppDataRepository(store, testAppDB),
		tickets:  repository.NewTicketRepository(store, testAppDB),
		metadata: repository.NewStoreMetadataRepository(store, logger),
	}
	h.plans = NewPlanService(billing, h.metadata, h.metadata, PlanPricing{
		Prices: map[domain.Plan]string{domain.PlanBasic: "9.99", domain.PlanPremium: "29.99"},
		Test:   true,
	}, "https://broker.example/billing/callback", "signing-secret", DefaultReturnTTL, nil, logger)
	h.credentials = NewCredentialsService(h.appData, h.metadata, h.metadata, h.plans, testAPIKey, nil, logger)
	h.ticketSvc = NewTicketService(h.tickets, h.sessions, lock.NewLocalLocker(), testAPIKey, DefaultTicketTTL, nil, logger)
	h.lifecycle = NewLifecycleService(h.sessions, h.appData, h.tickets, nil, logger)
	return h
}

// install stores an active offline session and returns the matching admin session
func (h *harness) install(t *testing.T, shop string) *domain.AdminSession {
	t.Helper()
	token := "shpat_" + shop
	require.NoError(t, h.sessions.Store(context.Background(), &domain.Session{
		ID:          domain.OfflineSessionID(shop),
		Shop:        shop,
		AccessToken: token,
		Scope:       "read_products",
	}))
	return &domain.AdminSession{Shop: shop, AccessToken: token}
}

// provision records an external project for shop the way the builder does
func (h *harness) provision(t *testing.T, shop, dbName string, plan domain.Plan) {
	t.Helper()
	_, err := h.store.WriteByKey(context.Background(), dbName, repository.StoreDataCollection, ports.WriteDocument{
		Key: repository.MetadataKey,
		Value: map[string]any{
			"paymentPlan": string(plan),
			"ecommerce":   map[string]string{"platform": domain.EcomPlatformShopify, "shop": shop},
		},
	}, ports.WriteOptions{})
	require.NoError(t, err)
}

// setClock freezes NowTimeFunc at start and returns a function that advances it
func setClock(t *testing.T, start time.Time) func(time.Duration) {
	t.Helper()
	var mu sync.Mutex
	current := start
	NowTimeFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	t.Cleanup(func() { NowTimeFunc = time.Now })
	return func(d time.Duration) {
		mu.Lock()
		current = current.Add(d)
		mu.Unlock()
	}
}

var errBillingDown = errors.New("billing unavailable")
