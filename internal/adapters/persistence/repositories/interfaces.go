package repositories

import (
	"context"
	"time"

	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/core/domain"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context) error
}

// DealFilter narrows deal listings.
type DealFilter struct {
	// ParticipantUserID limits results to deals the user owns or shares in.
	// Zero lists every deal.
	ParticipantUserID uint
	Status            domain.DealStatus
}

// DealRepository persists deals and their status history.
type DealRepository interface {
	Create(ctx context.Context, deal domain.Deal) error
	GetByID(ctx context.Context, id string) (domain.Deal, error)
	// Update saves deal if its stored version still equals deal.Version and
	// bumps the version. A stale version yields domain.ErrConcurrentUpdate.
	Update(ctx context.Context, deal *domain.Deal) error
	List(ctx context.Context, filter DealFilter, offset, limit int) ([]domain.Deal, int64, error)
	// WithDealLock runs fn inside a transaction holding a row lock on the deal.
	// Repository calls made with the ctx passed to fn join that transaction.
	WithDealLock(ctx context.Context, dealID string, fn func(ctx context.Context, deal domain.Deal) error) error
	// WithTx runs fn in a transaction without locking any deal.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	AppendTransition(ctx context.Context, t domain.DealTransition) error
	ListTransitions(ctx context.Context, dealID string) ([]domain.DealTransition, error)
}

// RecipientRepository persists commission recipients.
type RecipientRepository interface {
	ListByDeal(ctx context.Context, dealID string) ([]domain.Recipient, error)
	Save(ctx context.Context, r domain.Recipient) error
	SaveAll(ctx context.Context, rs []domain.Recipient) error
}

// InvitationRepository persists invitations.
type InvitationRepository interface {
	Create(ctx context.Context, inv domain.Invitation) error
	Update(ctx context.Context, inv domain.Invitation) error
	GetByID(ctx context.Context, id string) (domain.Invitation, error)
	ListByDeal(ctx context.Context, dealID string) ([]domain.Invitation, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Invitation, error)
}

// ContractRepository persists contracts with their required signers.
type ContractRepository interface {
	Create(ctx context.Context, c domain.Contract) error
	Update(ctx context.Context, c domain.Contract) error
	GetByID(ctx context.Context, id string) (domain.Contract, error)
	ListByDeal(ctx context.Context, dealID string) ([]domain.Contract, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Contract, error)
}

// SigningSessionRepository persists signing sessions.
type SigningSessionRepository interface {
	Create(ctx context.Context, s domain.SigningSession) error
	Update(ctx context.Context, s domain.SigningSession) error
	GetByToken(ctx context.Context, token string) (domain.SigningSession, error)
	ListByContract(ctx context.Context, contractID string) ([]domain.SigningSession, error)
}

// DisputeRepository persists disputes.
type DisputeRepository interface {
	Create(ctx context.Context, d domain.Dispute) error
	ListByDeal(ctx context.Context, dealID string) ([]domain.Dispute, error)
}
