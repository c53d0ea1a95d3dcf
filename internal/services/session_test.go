package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/omf/internal/models"
	"github.com/desertthunder/omf/internal/shared"
)

type memoryStore struct {
	mu      sync.Mutex
	cred    *models.OAuthCredential
	cleared int
}

func (m *memoryStore) Save(_ context.Context, c models.OAuthCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = &c
	return nil
}

func (m *memoryStore) Load(context.Context) (*models.OAuthCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, shared.ErrNotAuthenticated
	}
	c := *m.cred
	return &c, nil
}

func (m *memoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	m.cleared++
	return nil
}

var testClient = ClientCredentials{ClientID: "X", ClientSecret: "secret", RedirectURI: "omf://callback"}

func TestSession(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	newSession := func(p *fakeProvider, store *memoryStore) *Session {
		s := NewSession(p.service(now), store, testClient, nil)
		s.now = func() time.Time { return now }
		return s
	}

	t.Run("Login stores the credential", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 200, `{"access_token":"abc","refresh_token":"def","expires_in":3600}`)
		})
		store := &memoryStore{}

		cred, err := newSession(p, store).Login(context.Background(), "code")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.cred == nil || store.cred.AccessToken != "abc" || cred.AccessToken != "abc" {
			t.Errorf("credential not stored: %+v", store.cred)
		}
	})

	t.Run("Login without client credentials", func(t *testing.T) {
		s := NewSession(NewOsuAuthService(nil), &memoryStore{}, ClientCredentials{}, nil)
		_, err := s.Login(context.Background(), "code")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Login failure leaves the store untouched", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 400, `{"error":"invalid_grant"}`)
		})
		store := &memoryStore{}

		_, err := newSession(p, store).Login(context.Background(), "code")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if store.cred != nil {
			t.Error("nothing should be stored")
		}
	})

	t.Run("Valid returns unexpired credential without refreshing", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			t.Error("no token request expected")
		})
		store := &memoryStore{cred: &models.OAuthCredential{AccessToken: "abc", RefreshToken: "r", ExpiresAt: now.Add(time.Hour)}}

		cred, err := newSession(p, store).Valid(context.Background())
		if err != nil || cred.AccessToken != "abc" {
			t.Errorf("unexpected %v %v", cred, err)
		}
	})

	t.Run("Valid refreshes an expired credential", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 200, `{"access_token":"fresh","expires_in":86400}`)
		})
		store := &memoryStore{cred: &models.OAuthCredential{AccessToken: "stale", RefreshToken: "r", ExpiresAt: now.Add(-time.Minute)}}

		cred, err := newSession(p, store).Valid(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cred.AccessToken != "fresh" || store.cred.AccessToken != "fresh" || store.cred.RefreshToken != "r" {
			t.Errorf("expected refreshed credential keeping refresh token, got %+v", store.cred)
		}
	})

	t.Run("rejected refresh clears credentials", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 400, `{"error":"invalid_grant"}`)
		})
		store := &memoryStore{cred: &models.OAuthCredential{AccessToken: "stale", RefreshToken: "r", ExpiresAt: now.Add(-time.Minute)}}

		_, err := newSession(p, store).Valid(context.Background())
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
		if store.cred != nil || store.cleared != 1 {
			t.Errorf("expected credentials to be cleared once, cleared=%d", store.cleared)
		}
	})

	t.Run("server error on refresh keeps credentials", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			writeJSON(w, 503, `{}`)
		})
		store := &memoryStore{cred: &models.OAuthCredential{AccessToken: "stale", RefreshToken: "r", ExpiresAt: now.Add(-time.Minute)}}

		if _, err := newSession(p, store).Refresh(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if store.cred == nil {
			t.Error("credentials should survive a transient failure")
		}
	})

	t.Run("missing refresh token clears credentials", func(t *testing.T) {
		p := newFakeProvider(t, func(w http.ResponseWriter, form url.Values) {
			t.Error("no token request expected")
		})
		store := &memoryStore{cred: &models.OAuthCredential{AccessToken: "stale", ExpiresAt: now.Add(-time.Minute)}}

		_, err := newSession(p, store).Valid(context.Background())
		if !errors.Is(err, shared.ErrNoRefreshToken) || store.cred != nil {
			t.Errorf("expected ErrNoRefreshToken and cleared store, got %v", err)
		}
	})

	t.Run("not logged in", func(t *testing.T) {
		p := newFakeProvider(t, nil)
		_, err := newSession(p, &memoryStore{}).Valid(context.Background())
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("TokenSource", func(t *testing.T) {
		p := newFakeProvider(t, nil)
		store := &memoryStore{cred: &models.OAuthCredential{AccessToken: "abc", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}}

		tok, err := newSession(p, store).TokenSource(context.Background()).Token()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.AccessToken != "abc" || tok.TokenType != "Bearer" {
			t.Errorf("unexpected token %+v", tok)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		store := &memoryStore{cred: &models.OAuthCredential{AccessToken: "abc"}}
		s := NewSession(NewOsuAuthService(nil), store, testClient, nil)
		if err := s.Logout(context.Background()); err != nil || store.cred != nil {
			t.Errorf("expected cleared store, got %v", err)
		}
	})
}
