package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/omf/internal/shared"
	"github.com/desertthunder/omf/internal/transport"
)

// fakeProvider is an osu! OAuth provider double. token handles POST /oauth/token.
type fakeProvider struct {
	server     *httptest.Server
	probeCode  atomic.Int32
	probes     atomic.Int32
	tokenCalls atomic.Int32
	mu         sync.Mutex
	lastForm   url.Values
	token      func(w http.ResponseWriter, form url.Values)
}

func newFakeProvider(t *testing.T, token func(w http.ResponseWriter, form url.Values)) *fakeProvider {
	t.Helper()
	p := &fakeProvider{token: token}
	p.probeCode.Store(http.StatusOK)
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/" && r.Method == http.MethodGet:
			p.probes.Add(1)
			w.WriteHeader(int(p.probeCode.Load()))
		case r.URL.Path == "/oauth/token" && r.Method == http.MethodPost:
			p.tokenCalls.Add(1)
			if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
				t.Errorf("unexpected content type %q", ct)
			}
			if err := r.ParseForm(); err != nil {
				t.Errorf("failed to parse form: %v", err)
			}
			p.mu.Lock()
			p.lastForm = r.PostForm
			p.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			p.token(w, r.PostForm)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) service(now time.Time) *OsuAuthService {
	return NewOsuAuthService(
		transport.NewWebBackend(transport.Timeouts{}, transport.WithHTTPClient(p.server.Client())),
		WithBaseURL(p.server.URL),
		WithClock(func() time.Time { return now }),
	)
}

func (p *fakeProvider) form() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastForm
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestExchangeAuthorizationCode(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 200, `{"access_token":"abc","refresh_token":"def","expires_in":3600,"token_type":"Bearer"}`)
		})

		result := p.service(now).ExchangeAuthorizationCode(context.Background(), "the-code", "X", "secret", "omf://callback")
		if !result.OK() {
			t.Fatalf("expected Ok, got %s: %s", result.Status, result.Message)
		}
		if result.Credential.AccessToken != "abc" || result.Credential.RefreshToken != "def" {
			t.Errorf("unexpected credential %+v", result.Credential)
		}

		want := now.UnixMilli() + 3600000 - 300000
		if got := result.Credential.ExpiresAtEpochMs(); got != want {
			t.Errorf("expected expiry %d, got %d", want, got)
		}

		form := p.form()
		if form.Get("grant_type") != "authorization_code" || form.Get("client_id") != "X" || form.Get("code") != "the-code" ||
			form.Get("client_secret") != "secret" || form.Get("redirect_uri") != "omf://callback" {
			t.Errorf("unexpected form %v", form)
		}
		if p.probes.Load() != 1 {
			t.Errorf("expected one connectivity probe, got %d", p.probes.Load())
		}
	})

	t.Run("classifies failures", func(t *testing.T) {
		tc := []struct {
			name   string
			status int
			body   string
			want   ExchangeStatus
			clear  bool
		}{
			{name: "invalid grant", status: 400, body: `{"error":"invalid_grant","error_description":"code expired"}`, want: ExchangeInvalidGrant, clear: true},
			{name: "invalid client", status: 400, body: `{"error":"invalid_client"}`, want: ExchangeInvalidClient, clear: true},
			{name: "other 400", status: 400, body: `{"error":"unsupported_grant_type"}`, want: ExchangeOtherError, clear: true},
			{name: "unauthorized", status: 401, body: `{"error":"unauthorized"}`, want: ExchangeOtherError, clear: true},
			{name: "server error", status: 500, body: `oops`, want: ExchangeOtherError, clear: false},
			{name: "200 without token", status: 200, body: `{}`, want: ExchangeOtherError, clear: false},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
					writeJSON(w, tt.status, tt.body)
				})

				result := p.service(now).ExchangeAuthorizationCode(context.Background(), "code", "X", "secret", "omf://callback")
				if result.Status != tt.want {
					t.Errorf("expected %s, got %s", tt.want, result.Status)
				}
				if result.ShouldClearCredentials() != tt.clear {
					t.Errorf("ShouldClearCredentials = %v, want %v", result.ShouldClearCredentials(), tt.clear)
				}
				if result.StatusCode != tt.status {
					t.Errorf("expected status %d, got %d", tt.status, result.StatusCode)
				}
				if !errors.Is(result.Error(), shared.ErrAuthFailed) {
					t.Errorf("expected ErrAuthFailed, got %v", result.Error())
				}
			})
		}
	})

	t.Run("error description reaches the message", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 400, `{"error":"invalid_grant","error_description":"The authorization code has expired"}`)
		})

		result := p.service(now).ExchangeAuthorizationCode(context.Background(), "code", "X", "secret", "omf://callback")
		if result.ErrorCode != "invalid_grant" || !strings.Contains(result.Message, "has expired") {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("failed probe skips the exchange", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			t.Error("token endpoint should not be called")
		})
		p.probeCode.Store(http.StatusBadGateway)

		result := p.service(now).ExchangeAuthorizationCode(context.Background(), "code", "X", "secret", "omf://callback")
		if result.Status != ExchangeNetworkFailure {
			t.Fatalf("expected NetworkFailure, got %s", result.Status)
		}
		if p.tokenCalls.Load() != 0 {
			t.Errorf("expected no token calls, got %d", p.tokenCalls.Load())
		}
		if !errors.Is(result.Error(), shared.ErrNetworkFailure) {
			t.Errorf("expected ErrNetworkFailure, got %v", result.Error())
		}
	})

	t.Run("redirecting probe counts as reachable", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 200, `{"access_token":"abc","expires_in":60}`)
		})
		p.probeCode.Store(http.StatusNotModified)

		if result := p.service(now).ExchangeAuthorizationCode(context.Background(), "code", "X", "secret", "omf://callback"); !result.OK() {
			t.Errorf("expected Ok, got %s", result.Status)
		}
	})

	t.Run("unreachable provider", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		base := server.URL
		server.Close()

		svc := NewOsuAuthService(transport.NewWebBackend(transport.Timeouts{}), WithBaseURL(base))
		result := svc.ExchangeAuthorizationCode(context.Background(), "code", "X", "secret", "omf://callback")
		if result.Status != ExchangeNetworkFailure || result.Err == nil {
			t.Errorf("expected NetworkFailure with cause, got %+v", result)
		}
	})
}

func TestRefreshAccessToken(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("keeps old refresh token when none is returned", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 200, `{"access_token":"new","expires_in":86400}`)
		})

		result := p.service(now).RefreshAccessToken(context.Background(), "old-refresh", "X", "secret")
		if !result.OK() {
			t.Fatalf("expected Ok, got %s", result.Status)
		}
		if result.Credential.RefreshToken != "old-refresh" {
			t.Errorf("expected old refresh token, got %q", result.Credential.RefreshToken)
		}

		form := p.form()
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "old-refresh" {
			t.Errorf("unexpected form %v", form)
		}
		if form.Get("scope") != "identify public friends.read chat.read" {
			t.Errorf("unexpected scope %q", form.Get("scope"))
		}
		if p.probes.Load() != 0 {
			t.Error("refresh should not probe")
		}
	})

	t.Run("rotated refresh token", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 200, `{"access_token":"new","refresh_token":"rotated","expires_in":86400}`)
		})

		result := p.service(now).RefreshAccessToken(context.Background(), "old-refresh", "X", "secret")
		if result.Credential.RefreshToken != "rotated" {
			t.Errorf("expected rotated refresh token, got %q", result.Credential.RefreshToken)
		}
	})

	t.Run("401 asks to clear credentials", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 401, `{"error":"invalid_token"}`)
		})

		result := p.service(now).RefreshAccessToken(context.Background(), "old", "X", "secret")
		if result.Status != ExchangeOtherError || !result.ShouldClearCredentials() {
			t.Errorf("expected OtherError that clears credentials, got %+v", result)
		}
	})
}

func TestAuthCodeURL(t *testing.T) {
	svc := NewOsuAuthService(nil)
	raw := svc.AuthCodeURL("123", "http://127.0.0.1:3000/callback", "state-xyz")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url: %v", err)
	}
	if u.Host != "osu.ppy.sh" || u.Path != "/oauth/authorize" {
		t.Errorf("unexpected endpoint %s", raw)
	}

	q := u.Query()
	if q.Get("client_id") != "123" || q.Get("response_type") != "code" || q.Get("state") != "state-xyz" {
		t.Errorf("unexpected query %v", q)
	}
	if q.Get("scope") != "identify public friends.read chat.read" {
		t.Errorf("unexpected scope %q", q.Get("scope"))
	}
	if q.Get("redirect_uri") != "http://127.0.0.1:3000/callback" {
		t.Errorf("unexpected redirect_uri %q", q.Get("redirect_uri"))
	}
}
