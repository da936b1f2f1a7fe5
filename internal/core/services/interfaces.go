package services

import (
	"context"
	"time"

	"dealflow/internal/core/domain"
)

// DealTransitionSideEffects is told about every committed deal transition.
// Implementations must not assume they run inside the deal transaction.
type DealTransitionSideEffects interface {
	OnTransition(ctx context.Context, deal domain.Deal, from, to domain.DealStatus) error
}

// OTPDispatcher sends and checks one-time confirmation codes. key scopes a code
// to one signing session so a signer can confirm several documents.
type OTPDispatcher interface {
	SendOTP(ctx context.Context, key, phone string) (expiresInSeconds int, err error)
	ValidateOTP(ctx context.Context, key, code string) (bool, error)
}

// SMSSender delivers text messages.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// OTPEntry is one issued confirmation code.
type OTPEntry struct {
	Code      string    `json:"code"`
	Phone     string    `json:"phone"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// OTPStore keeps issued codes. Get returns nil, nil for an unknown key.
type OTPStore interface {
	Get(ctx context.Context, key string) (*OTPEntry, error)
	Put(ctx context.Context, key string, entry *OTPEntry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time
