package repositories

import (
	"context"

	"gorm.io/gorm"

	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/core/domain"
)

type recipientRepository struct {
	db *gorm.DB
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db *gorm.DB) RecipientRepository {
	return &recipientRepository{db: db}
}

func (r *recipientRepository) ListByDeal(ctx context.Context, dealID string) ([]domain.Recipient, error) {
	var rows []models.Recipient
	if err := getDB(ctx, r.db).Where("deal_id = ?", dealID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Recipient, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Save inserts or updates by primary key.
func (r *recipientRepository) Save(ctx context.Context, rec domain.Recipient) error {
	return getDB(ctx, r.db).Save(models.RecipientFromDomain(rec)).Error
}

func (r *recipientRepository) SaveAll(ctx context.Context, rs []domain.Recipient) error {
	if len(rs) == 0 {
		return nil
	}
	db := getDB(ctx, r.db)
	for _, rec := range rs {
		if err := db.Save(models.RecipientFromDomain(rec)).Error; err != nil {
			return err
		}
	}
	return nil
}
