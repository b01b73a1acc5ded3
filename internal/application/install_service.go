package application

import (
	"context"
	"fmt"
	"strings"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InstallService runs the platform install handshake and keeps the shop's
// offline session current
type InstallService struct {
	oauth       ports.OAuthClient
	sessions    ports.SessionRepository
	redirectURI string
	scopes      []string
	logger      zerolog.Logger
}

// NewInstallService creates an install service
func NewInstallService(
	oauth ports.OAuthClient,
	sessions ports.SessionRepository,
	redirectURI string,
	scopes []string,
	logger zerolog.Logger,
) *InstallService {
	return &InstallService{
		oauth:       oauth,
		sessions:    sessions,
		redirectURI: redirectURI,
		scopes:      scopes,
		logger:      logger,
	}
}

// Begin records a fresh state nonce on the shop's offline session and returns
// the platform authorization URL
func (s *InstallService) Begin(ctx context.Context, shop string) (string, error) {
	shop, ok := domain.NormalizeShop(shop)
	if !ok {
		return "", &domain.MissingFieldError{Field: "shop"}
	}

	session, err := s.sessions.Load(ctx, domain.OfflineSessionID(shop))
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		session = &domain.Session{
			ID:       domain.OfflineSessionID(shop),
			Shop:     shop,
			IsOnline: false,
		}
	}
	session.State = uuid.NewString()

	if err := s.sessions.Store(ctx, session); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info().Str("shop", shop).Msg("Install started")
	return s.oauth.AuthorizeURL(shop, session.State, s.redirectURI), nil
}

// Complete checks state against the stored nonce, exchanges code for an
// offline access token and stores it. The callback signature must already
// have been verified.
func (s *InstallService) Complete(ctx context.Context, shop, code, state string) (*domain.Session, error) {
	shop, ok := domain.NormalizeShop(shop)
	if !ok {
		return nil, &domain.MissingFieldError{Field: "shop"}
	}
	if code == "" {
		return nil, &domain.MissingFieldError{Field: "code"}
	}

	session, err := s.sessions.Load(ctx, domain.OfflineSessionID(shop))
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || session.State == "" || session.State != state {
		s.logger.Warn().Str("shop", shop).Msg("Install callback with unknown state")
		return nil, domain.ErrUnauthenticated
	}

	token, err := s.oauth.ExchangeToken(ctx, shop, code)
	if err != nil {
		return nil, domain.Upstream("exchange token", err)
	}

	session.AccessToken = token
	session.Scope = strings.Join(s.scopes, ",")
	session.State = ""

	if err := s.sessions.Store(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info().Str("shop", shop).Str("scope", session.Scope).Msg("Install completed")
	return session, nil
}

// UpdateScope records the scopes currently granted to the shop
func (s *InstallService) UpdateScope(ctx context.Context, shop string, scopes []string) error {
	session, err := s.sessions.Load(ctx, domain.OfflineSessionID(shop))
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		s.logger.Debug().Str("shop", shop).Msg("Scope update for shop without a session")
		return nil
	}

	session.Scope = strings.Join(scopes, ",")
	if err := s.sessions.Store(ctx, session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info().Str("shop", shop).Str("scope", session.Scope).Msg("Session scope updated")
	return nil
}
