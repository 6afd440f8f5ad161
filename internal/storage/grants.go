package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/token"
)

// GrantRepo is the PostgreSQL-backed token.Store.
type GrantRepo struct {
	pool *pgxpool.Pool
}

func NewGrantRepo(pool *pgxpool.Pool) *GrantRepo {
	return &GrantRepo{pool: pool}
}

// Grant loads the stored OAuth grant for a user.
func (r *GrantRepo) Grant(ctx context.Context, userID string) (*token.Grant, error) {
	query := `
		SELECT user_id, access_token, refresh_token, token_type, scopes, expires_at
		FROM oauth_grants
		WHERE user_id = $1
	`

	var g token.Grant
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&g.UserID,
		&g.AccessToken,
		&g.RefreshToken,
		&g.TokenType,
		&g.Scopes,
		&g.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, token.ErrGrantNotFound
		}
		return nil, fmt.Errorf("load grant: %w", err)
	}
	return &g, nil
}

// SaveTokens persists the outcome of a refresh. The refresh token passed
// in is the rotated one when the provider rotated, the previous one
// otherwise, so an unconditional write is correct either way.
func (r *GrantRepo) SaveTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE oauth_grants
		SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = now()
		WHERE user_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, userID, accessToken, refreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return token.ErrGrantNotFound
	}
	return nil
}

// Upsert records a freshly authorized grant, replacing any previous one
// for the user. Called by the OAuth callback flow.
func (r *GrantRepo) Upsert(ctx context.Context, g *token.Grant) error {
	query := `
		INSERT INTO oauth_grants (user_id, access_token, refresh_token, token_type, scopes, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    token_type = EXCLUDED.token_type,
		    scopes = EXCLUDED.scopes,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()
	`

	_, err := r.pool.Exec(ctx, query,
		g.UserID, g.AccessToken, g.RefreshToken, g.TokenType, g.Scopes, g.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}
