package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"dealflow/internal/adapters/persistence/repositories"
	"dealflow/internal/pkg/logger"
)

const expiryBatch = 200

// Expirer moves overdue records to their expired state.
type Expirer interface {
	ExpireOverdue(ctx context.Context, batch int) (int, error)
}

// ExpiryService runs periodic housekeeping: overdue invitations and contracts
// expire, and stale refresh tokens are purged.
type ExpiryService struct {
	schedule string
	jobs     map[string]Expirer
	tokens   repositories.RefreshTokenRepository
	cron     *cron.Cron
	cancel   context.CancelFunc
}

// NewExpiryService creates the service. schedule is a standard five-field cron expression.
func NewExpiryService(schedule string, invitations, contracts Expirer, tokens repositories.RefreshTokenRepository) *ExpiryService {
	return &ExpiryService{
		schedule: schedule,
		jobs: map[string]Expirer{
			"invitations": invitations,
			"contracts":   contracts,
		},
		tokens: tokens,
		cron:   cron.New(),
	}
}

// Start schedules the sweep and returns immediately.
func (s *ExpiryService) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.schedule, func() { _ = s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid expiry cron expression %q: %w", s.schedule, err)
	}
	s.cron.Start()
	logger.Info(ctx, "expiry scheduler started", "cron", s.schedule)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *ExpiryService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	logger.Info(context.Background(), "expiry scheduler stopped")
}

// RunOnce performs a single sweep and reports how many records each job
// expired. Failed jobs are logged and missing from the result.
func (s *ExpiryService) RunOnce(ctx context.Context) map[string]int {
	defer logger.LogDuration(ctx, "expiry sweep")()
	expired := make(map[string]int, len(s.jobs))
	for name, job := range s.jobs {
		if job == nil {
			continue
		}
		n, err := job.ExpireOverdue(ctx, expiryBatch)
		if err != nil {
			logger.Error(ctx, "expiry sweep failed", "job", name, "error", err)
			continue
		}
		expired[name] = n
		if n > 0 {
			logger.Info(ctx, "expired overdue records", "job", name, "count", n)
		}
	}
	if s.tokens != nil {
		if err := s.tokens.DeleteExpired(ctx); err != nil {
			logger.Error(ctx, "refresh token cleanup failed", "error", err)
		}
	}
	return expired
}
