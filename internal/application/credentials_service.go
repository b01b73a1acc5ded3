package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/infrastructure/metrics"
	"archie-builder-credential-broker/internal/ports"

	"github.com/rs/zerolog"
)

// CredentialsService issues and resolves builder access keys
type CredentialsService struct {
	appData  ports.AppDataRepository
	projects ports.ProjectLocator
	metadata ports.StoreMetadataRepository
	plans    *PlanService
	apiKey   string
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewCredentialsService creates a credentials service. apiKey is the platform
// app key handed to the builder alongside the shop's access token.
func NewCredentialsService(
	appData ports.AppDataRepository,
	projects ports.ProjectLocator,
	metadata ports.StoreMetadataRepository,
	plans *PlanService,
	apiKey string,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *CredentialsService {
	return &CredentialsService{
		appData:  appData,
		projects: projects,
		metadata: metadata,
		plans:    plans,
		apiKey:   apiKey,
		metrics:  m,
		logger:   logger,
	}
}

// ConfigureInput is the dashboard's configuration request
type ConfigureInput struct {
	Email string `json:"email"`
}

// ConfigureResult is returned to the dashboard
type ConfigureResult struct {
	AccessKey string `json:"accessKey"`
	IsNew     bool   `json:"isNew"`
}

// Configure mints a new access request for the authenticated shop. Shops with
// a provisioned project get an edit record pointing at it; others must supply
// an email and get a create record carrying their credentials and plan.
func (s *CredentialsService) Configure(ctx context.Context, admin *domain.AdminSession, input ConfigureInput) (*ConfigureResult, error) {
	if admin == nil || admin.Shop == "" {
		return nil, domain.ErrUnauthenticated
	}

	project, err := s.projects.FindByShop(ctx, admin.Shop)
	if err != nil {
		return nil, fmt.Errorf("failed to look up project: %w", err)
	}

	ts := now()
	record := &domain.AppDataRecord{
		EcomPlatform: domain.EcomPlatformShopify,
		Shop:         admin.Shop,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	if project != nil {
		record.Command = domain.CommandEdit
		record.DBName = project.DBName
	} else {
		email := strings.TrimSpace(input.Email)
		if email == "" {
			return nil, &domain.MissingFieldError{Field: "email"}
		}

		res, err := s.plans.Resolve(ctx, PlanInput{
			Shop:        admin.Shop,
			AccessToken: admin.AccessToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve plan: %w", err)
		}

		record.Command = domain.CommandCreate
		record.AccessToken = admin.AccessToken
		record.APIKey = s.apiKey
		record.Email = email
		record.PaymentMode = res.Plan
	}

	key, err := s.appData.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create access request: %w", err)
	}

	s.metrics.Configured(string(record.Command))
	s.logger.Info().
		Str("shop", admin.Shop).
		Str("command", string(record.Command)).
		Str("key", maskSecret(key)).
		Msg("Access request issued")

	return &ConfigureResult{AccessKey: key, IsNew: record.IsNew()}, nil
}

// Resolve returns the credential bundle bound to key. Unknown keys fail with
// domain.ErrInvalidCredential. Every attempt is audit logged with callerIP.
func (s *CredentialsService) Resolve(ctx context.Context, key string, callerIP string) (result *domain.ResolvedCredentials, err error) {
	key = strings.TrimSpace(key)

	defer func() {
		outcome := "success"
		event := s.logger.Info()
		switch {
		case errors.Is(err, domain.ErrMissingField):
			outcome = "missing_key"
			event = s.logger.Warn()
		case errors.Is(err, domain.ErrInvalidCredential):
			outcome = "invalid_key"
			event = s.logger.Warn()
		case err != nil:
			outcome = "error"
			event = s.logger.Error().Err(err)
		}
		s.metrics.ResolveAttempt(outcome)

		event = event.
			Str("audit", "credential_resolve").
			Str("ip", callerIP).
			Str("key", maskSecret(key)).
			Str("outcome", outcome)
		if result != nil {
			event = event.Str("shop", result.Shop)
		}
		event.Msg("Access key resolution")
	}()

	if key == "" {
		return nil, &domain.MissingFieldError{Field: "key"}
	}

	record, err := s.appData.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load access request: %w", err)
	}
	if record == nil {
		return nil, domain.ErrInvalidCredential
	}

	dbName := record.DBName
	if dbName == "" {
		// records written before dbName was embedded
		project, err := s.projects.FindByShop(ctx, record.Shop)
		if err != nil {
			return nil, fmt.Errorf("failed to look up project: %w", err)
		}
		if project != nil {
			dbName = project.DBName
		}
	}

	plan, err := s.projectPlan(ctx, dbName)
	if err != nil {
		return nil, err
	}

	return &domain.ResolvedCredentials{
		Shop:        record.Shop,
		DBName:      dbName,
		AccessToken: record.AccessToken,
		APIKey:      record.APIKey,
		Email:       record.Email,
		PaymentMode: plan,
		Plan:        plan,
		IsNew:       record.IsNew(),
	}, nil
}

// projectPlan reads the plan stored with the project; without one the
// default plan applies
func (s *CredentialsService) projectPlan(ctx context.Context, dbName string) (domain.Plan, error) {
	if dbName == "" {
		return domain.DefaultPlan, nil
	}

	meta, err := s.metadata.Load(ctx, dbName)
	if err != nil {
		return "", fmt.Errorf("failed to load store metadata: %w", err)
	}
	if meta == nil {
		return domain.DefaultPlan, nil
	}
	if plan, ok := domain.ParsePlan(string(meta.PaymentPlan)); ok {
		return plan, nil
	}
	return domain.DefaultPlan, nil
}
