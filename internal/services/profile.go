package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/omf/internal/models"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/desertthunder/omf/internal/transport"
)

const osuMePath = "/api/v2/me"

// errUnauthorized marks a 401 from the API so the session can refresh and retry.
var errUnauthorized = errors.New("access token rejected")

// Me fetches the profile of the user owning accessToken.
func (s *OsuAuthService) Me(ctx context.Context, accessToken string) (*models.UserProfile, error) {
	resp, err := s.backend.PerformRequest(ctx, transport.Request{
		URL:    s.baseURL + osuMePath,
		Method: http.MethodGet,
		Headers: map[string]string{
			"Authorization": "Bearer " + accessToken,
			"Accept":        "application/json",
			"User-Agent":    userAgent,
		},
		ResponseKind: transport.ResponseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrNetworkFailure, err)
	}

	raw := payloadText(resp.Payload)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, errUnauthorized)
	case !resp.OK():
		return nil, fmt.Errorf("profile request failed: HTTP %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

// Profile fetches the signed-in user's profile. A rejected token is refreshed once before giving up.
func (s *Session) Profile(ctx context.Context) (*models.UserProfile, error) {
	cred, err := s.Valid(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.auth.Me(ctx, cred.AccessToken)
	if !errors.Is(err, errUnauthorized) {
		return profile, err
	}

	s.logger.Info("access token rejected, refreshing")
	if cred, err = s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.auth.Me(ctx, cred.AccessToken)
}
