package repositories

import (
	"context"

	"gorm.io/gorm"

	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/core/domain"
)

type signingSessionRepository struct {
	db *gorm.DB
}

// NewSigningSessionRepository creates a new signing session repository
func NewSigningSessionRepository(db *gorm.DB) SigningSessionRepository {
	return &signingSessionRepository{db: db}
}

func (r *signingSessionRepository) Create(ctx context.Context, s domain.SigningSession) error {
	return getDB(ctx, r.db).Create(models.SigningSessionFromDomain(s)).Error
}

func (r *signingSessionRepository) Update(ctx context.Context, s domain.SigningSession) error {
	m := models.SigningSessionFromDomain(s)
	return getDB(ctx, r.db).
		Model(&models.SigningSession{}).
		Where("token = ?", s.Token).
		Updates(map[string]any{
			"step":                  m.Step,
			"consent_personal_data": m.ConsentPersonalData,
			"consent_pep":           m.ConsentPep,
			"phone_masked":          m.PhoneMasked,
			"otp_requested_at":      m.OTPRequestedAt,
			"otp_expires_at":        m.OTPExpiresAt,
			"code_used_at":          m.CodeUsedAt,
			"already_signed":        m.AlreadySigned,
			"auto_release_at":       m.AutoReleaseAt,
		}).Error
}

func (r *signingSessionRepository) GetByToken(ctx context.Context, token string) (domain.SigningSession, error) {
	var m models.SigningSession
	if err := getDB(ctx, r.db).Where("token = ?", token).First(&m).Error; err != nil {
		return domain.SigningSession{}, mapErr(err)
	}
	return m.ToDomain(), nil
}

func (r *signingSessionRepository) ListByContract(ctx context.Context, contractID string) ([]domain.SigningSession, error) {
	var rows []models.SigningSession
	if err := getDB(ctx, r.db).Where("contract_id = ?", contractID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.SigningSession, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

type disputeRepository struct {
	db *gorm.DB
}

// NewDisputeRepository creates a new dispute repository
func NewDisputeRepository(db *gorm.DB) DisputeRepository {
	return &disputeRepository{db: db}
}

func (r *disputeRepository) Create(ctx context.Context, d domain.Dispute) error {
	return getDB(ctx, r.db).Create(models.DisputeFromDomain(d)).Error
}

func (r *disputeRepository) ListByDeal(ctx context.Context, dealID string) ([]domain.Dispute, error) {
	var rows []models.Dispute
	if err := getDB(ctx, r.db).Where("deal_id = ?", dealID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Dispute, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}
