package services

import (
	"context"
	"errors"
	"strings"

	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/adapters/persistence/repositories"
	"dealflow/internal/config"
	"dealflow/internal/core/domain"
	"dealflow/internal/pkg/jwt"
	"dealflow/internal/pkg/logger"
	"dealflow/internal/pkg/password"
	"dealflow/internal/pkg/phone"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Auth errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrUserInactive       = errors.New("user account is inactive")
)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo         repositories.UserRepository
	refreshTokenRepo repositories.RefreshTokenRepository
	cfg              *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repositories.UserRepository,
	refreshTokenRepo repositories.RefreshTokenRepository,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		cfg:              cfg,
	}
}

// RegisterInput represents registration input. Self registration always
// creates an agent; staff accounts are seeded.
type RegisterInput struct {
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	FullName string  `json:"full_name" validate:"required"`
	Phone    string  `json:"phone" validate:"required"`
	AgencyID *string `json:"agency_id"`
}

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *models.UserResponse `json:"user"`
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
}

// Register registers a new agent
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*AuthResponse, error) {
	if err := password.Validate(input.Password); err != nil {
		return nil, &domain.ValidationError{Field: "password", Reason: err.Error()}
	}
	normalized := phone.Normalize(input.Phone)
	if normalized == "" {
		return nil, &domain.ValidationError{Field: "phone", Reason: "phone is required"}
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if err := s.ensureAvailable(ctx, input.Username, email, normalized); err != nil {
		return nil, err
	}

	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: input.Username,
		Email:    email,
		FullName: strings.TrimSpace(input.FullName),
		Phone:    normalized,
		AgencyID: input.AgencyID,
		Password: hashed,
		Role:     string(domain.RoleAgent),
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return s.issue(ctx, user)
}

// ensureAvailable rejects a registration whose username, email or phone is taken.
func (s *AuthService) ensureAvailable(ctx context.Context, username, email, normalizedPhone string) error {
	taken, err := s.userRepo.ExistsByUsername(ctx, username)
	if err == nil && !taken {
		taken, err = s.userRepo.ExistsByEmail(ctx, email)
	}
	if err != nil {
		return err
	}
	if taken {
		return ErrUserAlreadyExists
	}

	_, err = s.userRepo.GetByPhone(ctx, normalizedPhone)
	switch {
	case err == nil:
		return ErrUserAlreadyExists
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

// Login checks the credentials of an active user and issues a token pair
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, err
	case !user.IsActive:
		return nil, ErrUserInactive
	case !password.Verify(input.Password, user.Password):
		logger.Warn(ctx, "failed login", "username", input.Username)
		return nil, ErrInvalidCredentials
	}

	logger.Info(ctx, "user logged in", "user_id", user.ID)
	return s.issue(ctx, user)
}

// RefreshToken spends the presented refresh token and issues a new pair.
// A token that was already rotated away reports ErrTokenRevoked.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.cfg.JWT.RefreshSecret)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	} else if err != nil {
		return nil, ErrInvalidToken
	}

	tokenHash := password.HashToken(refreshToken)
	stored, err := s.refreshTokenRepo.GetByTokenHash(ctx, tokenHash)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrInvalidToken
	case err != nil:
		return nil, err
	case stored.IsRevoked():
		logger.Warn(ctx, "revoked refresh token presented", "user_id", stored.UserID)
		return nil, ErrTokenRevoked
	case stored.IsExpired():
		return nil, ErrTokenExpired
	case stored.UserID != claims.UserID:
		return nil, ErrInvalidToken
	}

	user, err := s.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if err := s.refreshTokenRepo.RevokeByTokenHash(ctx, tokenHash); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// Logout revokes one refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.refreshTokenRepo.RevokeByTokenHash(ctx, password.HashToken(refreshToken))
}

// LogoutAll revokes every refresh token of the user
func (s *AuthService) LogoutAll(ctx context.Context, userID uint) error {
	if err := s.refreshTokenRepo.RevokeAllByUserID(ctx, userID); err != nil {
		return err
	}
	logger.Info(ctx, "all sessions revoked", "user_id", userID)
	return nil
}

// ValidateAccessToken parses an access token signed by this service
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	return jwt.ValidateAccessToken(accessToken, s.cfg.JWT.Secret)
}

// GetUserByID loads a user, reporting ErrUserNotFound when missing
func (s *AuthService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// issue signs an access/refresh pair and records the refresh token hash.
func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResponse, error) {
	jwtCfg := s.cfg.JWT
	access, err := jwt.GenerateAccessToken(user.ID, user.Username, user.Role, jwtCfg.Secret, jwtCfg.AccessTokenMins)
	if err != nil {
		return nil, err
	}
	refresh, err := jwt.GenerateRefreshToken(user.ID, uuid.NewString(), jwtCfg.RefreshSecret, jwtCfg.RefreshTokenDays)
	if err != nil {
		return nil, err
	}

	if err := s.refreshTokenRepo.Create(ctx, &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: password.HashToken(refresh),
		ExpiresAt: jwt.GetExpiryTime(jwtCfg.RefreshTokenDays),
	}); err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         user.ToResponse(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
