package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/omf/internal/server"
	"github.com/desertthunder/omf/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthURL prints an authorization URL for manual sign-in.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	if r.config.Credentials.Osu.ClientID == "" {
		return fmt.Errorf("%w: credentials.osu.client_id is not set", shared.ErrMissingCredentials)
	}

	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	state := shared.GenerateState()
	r.writePlain("%s\n", d.session.AuthCodeURL(state))
	r.writePlainln("After approving, run 'omf auth exchange <code>' with the code from the redirect.")
	return nil
}

// AuthLogin runs the browser flow with a loopback callback server.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	addr, path, err := r.callbackAddress()
	if err != nil {
		return err
	}

	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	state := shared.GenerateState()
	handler := server.NewOAuthHandler(d.session, state, path)
	authURL := d.session.AuthCodeURL(state)

	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for osu! authorization...\n")
		if err := r.browser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	timeout := cmd.Duration("timeout")
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := server.WaitForCallback(waitCtx, ln, handler, r.logger)
	if err != nil {
		return err
	}
	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Credential == nil {
		return fmt.Errorf("%w: no credential received", shared.ErrAuthFailed)
	}

	return r.writePlain("✓ Signed in (token expires %s)\n", result.Credential.ExpiresAt.Format(time.RFC1123))
}

// callbackAddress derives the listen address and path from the configured redirect URI, falling back to the
// [server] section for non-HTTP redirects.
func (r *Runner) callbackAddress() (string, string, error) {
	fallback := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)

	redirect := r.config.Credentials.Osu.RedirectURI
	if redirect == "" {
		return fallback, "/callback", nil
	}

	u, err := url.Parse(redirect)
	if err != nil {
		return "", "", fmt.Errorf("%w: redirect_uri: %v", shared.ErrInvalidConfig, err)
	}
	if u.Scheme != "http" {
		return fallback, "/callback", nil
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return host, path, nil
}

// AuthExchange trades a code pasted by the user.
func (r *Runner) AuthExchange(ctx context.Context, cmd *cli.Command) error {
	code := strings.TrimSpace(cmd.StringArg("code"))
	if code == "" {
		return fmt.Errorf("%w: code", shared.ErrMissingArgument)
	}

	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	cred, err := d.session.Login(ctx, code)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Signed in (token expires %s)\n", cred.ExpiresAt.Format(time.RFC1123))
}

// AuthRefresh forces a refresh of the stored credential.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	cred, err := d.session.Refresh(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Token refreshed (expires %s)\n", cred.ExpiresAt.Format(time.RFC1123))
}

type authStatus struct {
	Authenticated bool      `json:"authenticated"`
	Expired       bool      `json:"expired"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
	HasRefresh    bool      `json:"has_refresh_token"`
	Scope         string    `json:"scope,omitempty"`
}

// AuthStatus reports whether a credential is stored and when it expires.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	status := authStatus{}
	cred, err := d.session.Current(ctx)
	switch {
	case err == nil:
		status = authStatus{
			Authenticated: true,
			Expired:       cred.Expired(time.Now()),
			ExpiresAt:     cred.ExpiresAt,
			HasRefresh:    cred.RefreshToken != "",
			Scope:         cred.Scope,
		}
	case !isNotAuthenticated(err):
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	if !status.Authenticated {
		return r.writePlain("✗ Not authenticated. Run 'omf auth login'.\n")
	}
	r.writePlain("✓ Authenticated\n")
	r.writePlain("Expires: %s", status.ExpiresAt.Format(time.RFC1123))
	if status.Expired {
		r.writePlain(" (expired)")
	}
	r.writePlain("\nRefresh token: %v\n", status.HasRefresh)
	if status.Scope != "" {
		r.writePlain("Scope: %s\n", status.Scope)
	}
	return nil
}

// AuthMe prints the signed-in user's profile.
func (r *Runner) AuthMe(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	profile, err := d.session.Profile(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(profile, cmd.Bool("pretty"))
	}

	r.writePlainHeader(profile.Username)
	r.writePlain("ID: %d\n", profile.ID)
	r.writePlain("Country: %s\n", profile.CountryCode)
	r.writePlain("Mode: %s\n", profile.Playmode)
	if s := profile.Statistics; s != nil {
		r.writePlain("PP: %.2f\n", s.PP)
		if s.GlobalRank > 0 {
			r.writePlain("Rank: #%d\n", s.GlobalRank)
		}
	}
	return nil
}

// AuthLogout clears the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.session.Logout(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}
