package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/core/domain"
)

type contractRepository struct {
	db *gorm.DB
}

// NewContractRepository creates a new contract repository
func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

// Create stores the contract and its signers in one statement batch.
func (r *contractRepository) Create(ctx context.Context, c domain.Contract) error {
	return getDB(ctx, r.db).Create(models.ContractFromDomain(c)).Error
}

// Update saves contract status and signer signatures. The signer list itself
// is fixed at creation.
func (r *contractRepository) Update(ctx context.Context, c domain.Contract) error {
	m := models.ContractFromDomain(c)
	save := func(tx *gorm.DB) error {
		err := tx.Model(&models.Contract{}).
			Where("id = ?", c.ID).
			Updates(map[string]any{
				"status":     m.Status,
				"updated_at": m.UpdatedAt,
			}).Error
		if err != nil {
			return err
		}
		for _, s := range m.Signers {
			err := tx.Model(&models.ContractSigner{}).
				Where("id = ? AND contract_id = ?", s.ID, c.ID).
				Update("signed_at", s.SignedAt).Error
			if err != nil {
				return err
			}
		}
		return nil
	}

	if _, inTx := ctx.Value(txKey{}).(*gorm.DB); inTx {
		return save(getDB(ctx, r.db))
	}
	return r.db.WithContext(ctx).Transaction(save)
}

func (r *contractRepository) GetByID(ctx context.Context, id string) (domain.Contract, error) {
	var m models.Contract
	err := getDB(ctx, r.db).
		Preload("Signers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return domain.Contract{}, mapErr(err)
	}
	return m.ToDomain(), nil
}

func (r *contractRepository) ListByDeal(ctx context.Context, dealID string) ([]domain.Contract, error) {
	var rows []models.Contract
	err := getDB(ctx, r.db).
		Preload("Signers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("deal_id = ?", dealID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toContracts(rows), nil
}

// ListOverdue returns contracts still collecting signatures past their deadline.
func (r *contractRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Contract, error) {
	var rows []models.Contract
	err := getDB(ctx, r.db).
		Preload("Signers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("status IN ?", []string{string(domain.ContractPendingSignature), string(domain.ContractPartiallySigned)}).
		Where("expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toContracts(rows), nil
}

func toContracts(rows []models.Contract) []domain.Contract {
	out := make([]domain.Contract, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}
