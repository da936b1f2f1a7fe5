package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow/internal/config"
	"dealflow/internal/core/domain"
)

func newAuthService(t *testing.T) (*AuthService, *memStore) {
	t.Helper()
	store := newMemStore()
	cfg := &config.Config{JWT: config.JWTConfig{
		Secret:           "access-secret",
		RefreshSecret:    "refresh-secret",
		AccessTokenMins:  15,
		RefreshTokenDays: 7,
	}}
	return NewAuthService(fakeUsers{store}, fakeTokens{store}, cfg), store
}

func registerInput() *RegisterInput {
	return &RegisterInput{
		Username: "olga",
		Email:    "Olga@Example.test",
		Password: "correct-horse",
		FullName: "Olga Owner",
		Phone:    "+7 999 000-00-01",
	}
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)
	assert.Equal(t, string(domain.RoleAgent), resp.User.Role)
	assert.Equal(t, "olga@example.test", resp.User.Email)
	assert.Equal(t, "+79990000001", resp.User.Phone)
	assert.NotEmpty(t, resp.AccessToken)

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	_, err = svc.Register(ctx, registerInput())
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, err = svc.Login(ctx, &LoginInput{Username: "olga", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &LoginInput{Username: "nobody", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	login, err := svc.Login(ctx, &LoginInput{Username: "olga", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.RefreshToken)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newAuthService(t)

	in := registerInput()
	in.Password = "short"
	_, err := svc.Register(context.Background(), in)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)
}

func TestAuthService_RefreshRotates(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	next, err := svc.RefreshToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, next.RefreshToken)

	_, err = svc.RefreshToken(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "a rotated token cannot be reused")

	require.NoError(t, svc.LogoutAll(ctx, resp.User.ID))
	_, err = svc.RefreshToken(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Len(t, store.tokens, 2)

	_, err = svc.RefreshToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
