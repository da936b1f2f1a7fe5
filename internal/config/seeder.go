package config

import (
	"context"
	"errors"

	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/core/domain"
	"dealflow/internal/pkg/logger"
	"dealflow/internal/pkg/password"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	cfg *Config
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, cfg *Config) *Seeder {
	return &Seeder{db: db, cfg: cfg}
}

// Run executes all seeders
func (s *Seeder) Run(ctx context.Context) error {
	logger.Info(ctx, "running database seeders")

	if err := s.seedStaffUser(ctx, "admin", "admin@dealflow.local", domain.RoleAdmin); err != nil {
		logger.Warn(ctx, "admin seeder skipped", "error", err)
	}
	if err := s.seedStaffUser(ctx, "finance", "finance@dealflow.local", domain.RoleFinance); err != nil {
		logger.Warn(ctx, "finance seeder skipped", "error", err)
	}
	return nil
}

// seedStaffUser creates a staff account for development.
// Production staff accounts are created through a secure process.
func (s *Seeder) seedStaffUser(ctx context.Context, username, email string, role domain.Role) error {
	if s.cfg.IsProd() {
		return errors.New("seeding disabled in prod")
	}
	pass := getEnv("SEED_STAFF_PASSWORD", "")
	if len(pass) < 8 {
		return errors.New("SEED_STAFF_PASSWORD must be at least 8 characters")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", string(role)).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := password.Hash(pass)
	if err != nil {
		return err
	}
	user := &models.User{
		Username: username,
		Email:    email,
		FullName: username,
		Password: hashed,
		Role:     string(role),
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return err
	}

	logger.Info(ctx, "staff user created", "username", username, "role", role)
	return nil
}
