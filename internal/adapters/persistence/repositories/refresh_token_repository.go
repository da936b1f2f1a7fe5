package repositories

import (
	"context"
	"time"

	"dealflow/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// revokedRetention is how long revoked tokens are kept for audit before the
// expiry sweep removes them.
const revokedRetention = 30 * 24 * time.Hour

type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// GetByTokenHash returns the live token with this hash; revoked tokens are
// reported as gorm.ErrRecordNotFound.
func (r *refreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND revoked_at IS NULL", tokenHash).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *refreshTokenRepository) revoke(ctx context.Context, query string, args ...any) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("revoked_at IS NULL").
		Where(query, args...).
		Update("revoked_at", &now).Error
}

func (r *refreshTokenRepository) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	return r.revoke(ctx, "token_hash = ?", tokenHash)
}

func (r *refreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID uint) error {
	return r.revoke(ctx, "user_id = ?", userID)
}

// DeleteExpired purges expired tokens and tokens revoked longer ago than the
// retention period.
func (r *refreshTokenRepository) DeleteExpired(ctx context.Context) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at < ?", now, now.Add(-revokedRetention)).
		Delete(&models.RefreshToken{}).Error
}
