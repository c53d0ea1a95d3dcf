package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/omf/internal/models"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/desertthunder/omf/internal/transport"
	"golang.org/x/oauth2"
)

const (
	OsuBaseURL = "https://osu.ppy.sh"

	osuAuthorizePath = "/oauth/authorize"
	osuTokenPath     = "/oauth/token"
	userAgent        = "omf/1.0"

	// ExpiryMargin is subtracted from expires_in so credentials are refreshed before the provider rejects them.
	ExpiryMargin = 5 * time.Minute
)

// DefaultScopes are requested for both grants.
var DefaultScopes = []string{"identify", "public", "friends.read", "chat.read"}

// ExchangeStatus is the terminal state of one exchange.
type ExchangeStatus int

const (
	ExchangeOK ExchangeStatus = iota
	ExchangeInvalidClient
	ExchangeInvalidGrant
	ExchangeNetworkFailure
	ExchangeOtherError
)

func (s ExchangeStatus) String() string {
	switch s {
	case ExchangeOK:
		return "ok"
	case ExchangeInvalidClient:
		return "invalid_client"
	case ExchangeInvalidGrant:
		return "invalid_grant"
	case ExchangeNetworkFailure:
		return "network_failure"
	default:
		return "other_error"
	}
}

// TokenExchangeResult is the outcome of a grant request.
type TokenExchangeResult struct {
	Status      ExchangeStatus
	Credential  *models.OAuthCredential // set when Status is ExchangeOK
	StatusCode  int                     // HTTP status, 0 when there was no response
	ErrorCode   string                  // provider "error" field
	Description string                  // provider "error_description" field
	Message     string
	Err         error // transport failure behind a NetworkFailure
}

// OK reports whether a credential was issued.
func (r TokenExchangeResult) OK() bool { return r.Status == ExchangeOK }

// ShouldClearCredentials reports whether stored credentials are no longer usable after this result.
func (r TokenExchangeResult) ShouldClearCredentials() bool {
	switch {
	case r.Status == ExchangeInvalidClient, r.Status == ExchangeInvalidGrant:
		return true
	case r.StatusCode == http.StatusBadRequest, r.StatusCode == http.StatusUnauthorized:
		return true
	}
	return false
}

// Error converts a failed result to an error; it is nil for ExchangeOK.
func (r TokenExchangeResult) Error() error {
	switch r.Status {
	case ExchangeOK:
		return nil
	case ExchangeNetworkFailure:
		return fmt.Errorf("%w: %s", shared.ErrNetworkFailure, r.Message)
	default:
		return fmt.Errorf("%w: %s: %s", shared.ErrAuthFailed, r.Status, r.Message)
	}
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
	Hint             string `json:"hint"`
}

// OsuAuthService performs osu! OAuth grants.
type OsuAuthService struct {
	backend transport.Backend
	baseURL string
	scopes  []string
	now     func() time.Time
	logger  *log.Logger
}

// OsuOption configures an [OsuAuthService].
type OsuOption func(*OsuAuthService)

// WithBaseURL points the service at another provider host.
func WithBaseURL(u string) OsuOption {
	return func(s *OsuAuthService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) OsuOption {
	return func(s *OsuAuthService) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) OsuOption {
	return func(s *OsuAuthService) { s.logger = shared.WithLogger(l, "component", "auth") }
}

// NewOsuAuthService creates an exchanger that sends its requests through backend.
func NewOsuAuthService(backend transport.Backend, opts ...OsuOption) *OsuAuthService {
	s := &OsuAuthService{
		backend: backend,
		baseURL: OsuBaseURL,
		scopes:  DefaultScopes,
		now:     time.Now,
		logger:  shared.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OAuthConfig describes the provider endpoints for clientID.
func (s *OsuAuthService) OAuthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       s.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   s.baseURL + osuAuthorizePath,
			TokenURL:  s.baseURL + osuTokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL returns the page the user visits to authorize the application.
func (s *OsuAuthService) AuthCodeURL(clientID, redirectURI, state string) string {
	return s.OAuthConfig(clientID, "", redirectURI).AuthCodeURL(state)
}

// ExchangeAuthorizationCode trades an authorization code for a credential.
func (s *OsuAuthService) ExchangeAuthorizationCode(ctx context.Context, code, clientID, clientSecret, redirectURI string) TokenExchangeResult {
	if err := s.probe(ctx); err != nil {
		s.logger.Warn("provider unreachable, skipping exchange", "error", err)
		return TokenExchangeResult{Status: ExchangeNetworkFailure, Message: "cannot reach " + s.baseURL, Err: err}
	}

	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {redirectURI},
	}
	return s.grant(ctx, form, "")
}

// RefreshAccessToken trades a refresh token for a new credential. When the provider does not rotate the refresh
// token, the old one is kept.
func (s *OsuAuthService) RefreshAccessToken(ctx context.Context, refreshToken, clientID, clientSecret string) TokenExchangeResult {
	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {strings.Join(s.scopes, " ")},
	}
	return s.grant(ctx, form, refreshToken)
}

// probe checks that the provider answers at all. 2xx and 3xx count as reachable.
func (s *OsuAuthService) probe(ctx context.Context) error {
	resp, err := s.backend.PerformRequest(ctx, transport.Request{
		URL:          s.baseURL,
		Method:       http.MethodGet,
		Headers:      map[string]string{"User-Agent": userAgent},
		ResponseKind: transport.ResponseText,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("probe answered HTTP %d", resp.StatusCode)
	}
	return nil
}

func (s *OsuAuthService) grant(ctx context.Context, form url.Values, previousRefresh string) TokenExchangeResult {
	grantType := form.Get("grant_type")
	logger := s.logger.With("grant_type", grantType)

	resp, err := s.backend.PerformRequest(ctx, transport.Request{
		URL:    s.baseURL + osuTokenPath,
		Method: http.MethodPost,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
			"User-Agent":   userAgent,
		},
		Body:         []byte(form.Encode()),
		ResponseKind: transport.ResponseJSON,
	})
	if err != nil {
		logger.Error("token request failed", "error", err)
		return TokenExchangeResult{Status: ExchangeNetworkFailure, Message: err.Error(), Err: err}
	}

	var body tokenResponse
	raw := payloadText(resp.Payload)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			logger.Debug("token response is not JSON", "status", resp.StatusCode)
		}
	}

	result := TokenExchangeResult{StatusCode: resp.StatusCode, ErrorCode: body.Error, Description: body.ErrorDescription}

	switch {
	case resp.StatusCode == http.StatusOK && body.AccessToken != "":
		refresh := body.RefreshToken
		if refresh == "" {
			refresh = previousRefresh
		}
		result.Status = ExchangeOK
		result.Credential = &models.OAuthCredential{
			AccessToken:  body.AccessToken,
			RefreshToken: refresh,
			TokenType:    body.TokenType,
			Scope:        body.Scope,
			ExpiresAt:    s.now().Add(time.Duration(body.ExpiresIn)*time.Second - ExpiryMargin),
		}
		logger.Info("token issued", "expires_at", result.Credential.ExpiresAt.Format(time.RFC3339))
		return result
	case resp.StatusCode == http.StatusOK:
		result.Status = ExchangeOtherError
		result.Message = "token response did not contain an access_token"
	case resp.StatusCode == http.StatusBadRequest && body.Error == "invalid_client":
		result.Status = ExchangeInvalidClient
		result.Message = describe(body, "client authentication failed; check the client id, secret and redirect URI")
	case resp.StatusCode == http.StatusBadRequest && body.Error == "invalid_grant":
		result.Status = ExchangeInvalidGrant
		result.Message = describe(body, "authorization code or refresh token is invalid or expired")
	default:
		result.Status = ExchangeOtherError
		result.Message = describe(body, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(raw, 200)))
	}

	logger.Warn("token request rejected", "status", resp.StatusCode, "result", result.Status, "error", body.Error)
	return result
}

func payloadText(p transport.Payload) string {
	switch p.Kind() {
	case transport.PayloadText:
		return p.Text()
	case transport.PayloadBytes:
		return string(p.Bytes())
	default:
		return ""
	}
}

func describe(body tokenResponse, fallback string) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{body.Error, body.ErrorDescription, body.Message} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ": ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
