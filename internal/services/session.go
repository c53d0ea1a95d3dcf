package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/omf/internal/models"
	"github.com/desertthunder/omf/internal/shared"
	"golang.org/x/oauth2"
)

// ClientCredentials identify the registered osu! OAuth application.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Validate reports missing fields.
func (c ClientCredentials) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("%w: osu client_id and client_secret must be configured", shared.ErrMissingCredentials)
	}
	return nil
}

// Session keeps the current credential valid.
type Session struct {
	auth   *OsuAuthService
	store  models.CredentialStore
	client ClientCredentials
	now    func() time.Time
	logger *log.Logger

	// serialises refreshes so concurrent callers do not spend the same refresh token twice
	mu sync.Mutex
}

// NewSession creates a session. The logger may be nil.
func NewSession(auth *OsuAuthService, store models.CredentialStore, client ClientCredentials, logger *log.Logger) *Session {
	return &Session{
		auth:   auth,
		store:  store,
		client: client,
		now:    time.Now,
		logger: shared.WithLogger(logger, "component", "session"),
	}
}

// AuthCodeURL returns the authorize page for the configured application.
func (s *Session) AuthCodeURL(state string) string {
	return s.auth.AuthCodeURL(s.client.ClientID, s.client.RedirectURI, state)
}

// Login exchanges an authorization code and stores the credential.
func (s *Session) Login(ctx context.Context, code string) (*models.OAuthCredential, error) {
	if err := s.client.Validate(); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	result := s.auth.ExchangeAuthorizationCode(ctx, code, s.client.ClientID, s.client.ClientSecret, s.client.RedirectURI)
	if !result.OK() {
		return nil, result.Error()
	}

	if err := s.store.Save(ctx, *result.Credential); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}
	s.logger.Info("logged in", "expires_at", result.Credential.ExpiresAt.Format(time.RFC3339))
	return result.Credential, nil
}

// Refresh replaces the stored credential using its refresh token.
func (s *Session) Refresh(ctx context.Context) (*models.OAuthCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.refreshLocked(ctx, cred)
}

func (s *Session) refreshLocked(ctx context.Context, cred *models.OAuthCredential) (*models.OAuthCredential, error) {
	if cred.RefreshToken == "" {
		s.clear(ctx)
		return nil, shared.ErrNoRefreshToken
	}
	if err := s.client.Validate(); err != nil {
		s.clear(ctx)
		return nil, err
	}

	result := s.auth.RefreshAccessToken(ctx, cred.RefreshToken, s.client.ClientID, s.client.ClientSecret)
	if !result.OK() {
		if result.ShouldClearCredentials() {
			s.logger.Warn("refresh token rejected, clearing credentials", "result", result.Status, "status", result.StatusCode)
			s.clear(ctx)
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, result.Error())
	}

	if err := s.store.Save(ctx, *result.Credential); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}
	s.logger.Debug("credential refreshed", "expires_at", result.Credential.ExpiresAt.Format(time.RFC3339))
	return result.Credential, nil
}

// Current returns the stored credential without refreshing it.
func (s *Session) Current(ctx context.Context) (*models.OAuthCredential, error) {
	return s.store.Load(ctx)
}

// Valid returns a credential that has not expired, refreshing when needed.
func (s *Session) Valid(ctx context.Context) (*models.OAuthCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !cred.Expired(s.now()) {
		return cred, nil
	}
	return s.refreshLocked(ctx, cred)
}

// Logout forgets the stored credential.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// TokenSource returns an [oauth2.TokenSource] backed by the session, for use with [oauth2.NewClient].
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	var initial *oauth2.Token
	if cred, err := s.store.Load(ctx); err == nil {
		initial = cred.Token()
	}
	return oauth2.ReuseTokenSource(initial, sessionTokenSource{ctx: ctx, session: s})
}

func (s *Session) clear(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("failed to clear credentials", "error", err)
	}
}

type sessionTokenSource struct {
	ctx     context.Context
	session *Session
}

func (t sessionTokenSource) Token() (*oauth2.Token, error) {
	cred, err := t.session.Valid(t.ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			return nil, fmt.Errorf("%w: run `omf auth login` first", err)
		}
		return nil, err
	}
	return cred.Token(), nil
}
