package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/core/domain"
)

type invitationRepository struct {
	db *gorm.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

func (r *invitationRepository) Create(ctx context.Context, inv domain.Invitation) error {
	return getDB(ctx, r.db).Create(models.InvitationFromDomain(inv)).Error
}

func (r *invitationRepository) Update(ctx context.Context, inv domain.Invitation) error {
	m := models.InvitationFromDomain(inv)
	return getDB(ctx, r.db).
		Model(&models.Invitation{}).
		Where("id = ?", inv.ID).
		Updates(map[string]any{
			"status":         m.Status,
			"responded_at":   m.RespondedAt,
			"decline_reason": m.DeclineReason,
		}).Error
}

func (r *invitationRepository) GetByID(ctx context.Context, id string) (domain.Invitation, error) {
	var m models.Invitation
	if err := getDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.Invitation{}, mapErr(err)
	}
	return m.ToDomain(), nil
}

func (r *invitationRepository) ListByDeal(ctx context.Context, dealID string) ([]domain.Invitation, error) {
	var rows []models.Invitation
	if err := getDB(ctx, r.db).Where("deal_id = ?", dealID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toInvitations(rows), nil
}

// ListOverdue returns pending invitations past their deadline, oldest first.
func (r *invitationRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Invitation, error) {
	var rows []models.Invitation
	err := getDB(ctx, r.db).
		Where("status = ?", string(domain.InvitationPending)).
		Where("expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toInvitations(rows), nil
}

func toInvitations(rows []models.Invitation) []domain.Invitation {
	out := make([]domain.Invitation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}
