package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowsync/flowsync-api/internal/models"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/metrics"
)

// TokenRepository reads OAuth tokens. Tokens are written by the OAuth flow,
// which lives outside this service.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{
		pool: pool,
	}
}

// GetToken returns the user's access token for provider. A missing token is a
// configuration error: the user has not connected that account.
func (r *TokenRepository) GetToken(ctx context.Context, userID string, provider models.Provider) (string, error) {
	start := time.Now()
	query := `SELECT access_token FROM oauth_tokens WHERE user_id = $1 AND provider = $2`

	var token string
	err := r.pool.QueryRow(ctx, query, userID, string(provider)).Scan(&token)
	observe("get_token", metrics.MeasureDuration(start), err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ConfigurationError(fmt.Sprintf("%s token for user %s", provider, userID))
		}
		return "", fmt.Errorf("failed to get %s token: %w", provider, err)
	}
	return token, nil
}
