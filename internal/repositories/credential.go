package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/omf/internal/models"
	"github.com/desertthunder/omf/internal/shared"
)

// ProviderOsu is the provider key for osu! credentials.
const ProviderOsu = "osu"

// CredentialRepository stores one credential per provider and implements [models.CredentialStore].
type CredentialRepository struct {
	db       *sql.DB
	provider string
}

// NewCredentialRepository creates a store for provider's credential.
func NewCredentialRepository(db *sql.DB, provider string) *CredentialRepository {
	return &CredentialRepository{db: db, provider: provider}
}

// Save inserts or replaces the credential.
func (r *CredentialRepository) Save(ctx context.Context, cred models.OAuthCredential) error {
	if cred.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO credentials (provider, access_token, refresh_token, token_type, scope, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			scope = excluded.scope,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		r.provider,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenType,
		cred.Scope,
		cred.ExpiresAtEpochMs(),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Load returns the stored credential, or [shared.ErrNotAuthenticated].
func (r *CredentialRepository) Load(ctx context.Context) (*models.OAuthCredential, error) {
	query := `
		SELECT access_token, refresh_token, token_type, scope, expires_at
		FROM credentials
		WHERE provider = ?
	`

	var (
		cred      models.OAuthCredential
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, query, r.provider).Scan(&cred.AccessToken, &cred.RefreshToken, &cred.TokenType, &cred.Scope, &expiresAt)
	if isNoRows(err) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	cred.ExpiresAt = time.UnixMilli(expiresAt)
	return &cred, nil
}

// Clear deletes the stored credential. Clearing an empty store succeeds.
func (r *CredentialRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM credentials WHERE provider = ?", r.provider); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
