package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/core/domain"
)

// dealRepository implements DealRepository interface
type dealRepository struct {
	db *gorm.DB
}

// NewDealRepository creates a new deal repository
func NewDealRepository(db *gorm.DB) DealRepository {
	return &dealRepository{db: db}
}

func (r *dealRepository) Create(ctx context.Context, deal domain.Deal) error {
	return getDB(ctx, r.db).Create(models.DealFromDomain(deal)).Error
}

func (r *dealRepository) GetByID(ctx context.Context, id string) (domain.Deal, error) {
	var m models.Deal
	if err := getDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.Deal{}, mapErr(err)
	}
	return m.ToDomain(), nil
}

func (r *dealRepository) Update(ctx context.Context, deal *domain.Deal) error {
	m := models.DealFromDomain(*deal)
	next := deal.Version + 1

	res := getDB(ctx, r.db).
		Model(&models.Deal{}).
		Where("id = ? AND version = ?", deal.ID, deal.Version).
		Updates(map[string]any{
			"status":             m.Status,
			"property_address":   m.PropertyAddress,
			"price":              m.Price,
			"commission_total":   m.CommissionTotal,
			"commission_agent":   m.CommissionAgent,
			"payment_type":       m.PaymentType,
			"commission_percent": m.CommissionPercent,
			"commission_fixed":   m.CommissionFixed,
			"advance_type":       m.AdvanceType,
			"advance_amount":     m.AdvanceAmount,
			"advance_percent":    m.AdvancePercent,
			"client_name":        m.ClientName,
			"client_phone":       m.ClientPhone,
			"client_email":       m.ClientEmail,
			"hold_until":         m.HoldUntil,
			"version":            next,
			"updated_at":         m.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	deal.Version = next
	return nil
}

func (r *dealRepository) List(ctx context.Context, filter DealFilter, offset, limit int) ([]domain.Deal, int64, error) {
	query := getDB(ctx, r.db).Model(&models.Deal{})
	if filter.ParticipantUserID != 0 {
		shared := getDB(ctx, r.db).Model(&models.Recipient{}).
			Select("deal_id").
			Where("user_id = ?", filter.ParticipantUserID)
		query = query.Where("agent_user_id = ? OR id IN (?)", filter.ParticipantUserID, shared)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Deal
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	deals := make([]domain.Deal, 0, len(rows))
	for i := range rows {
		deals = append(deals, rows[i].ToDomain())
	}
	return deals, total, nil
}

// WithDealLock serialises mutations of one deal with SELECT ... FOR UPDATE.
func (r *dealRepository) WithDealLock(ctx context.Context, dealID string, fn func(ctx context.Context, deal domain.Deal) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.Deal
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", dealID).First(&m).Error
		if err != nil {
			return fmt.Errorf("deal lock failed: %w", mapErr(err))
		}
		return fn(withTx(ctx, tx), m.ToDomain())
	})
}

func (r *dealRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(withTx(ctx, tx))
	})
}

func (r *dealRepository) AppendTransition(ctx context.Context, t domain.DealTransition) error {
	return getDB(ctx, r.db).Create(models.DealTransitionFromDomain(t)).Error
}

func (r *dealRepository) ListTransitions(ctx context.Context, dealID string) ([]domain.DealTransition, error) {
	var rows []models.DealTransition
	if err := getDB(ctx, r.db).Where("deal_id = ?", dealID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.DealTransition, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}
