package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow/internal/config"
	"dealflow/internal/pkg/jwt"
)

func testConfig() *config.Config {
	return &config.Config{JWT: config.JWTConfig{Secret: "access-secret"}}
}

func newProtectedApp(cfg *config.Config, extra ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers := append([]fiber.Handler{AuthMiddleware(cfg)}, extra...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("userID"), "role": c.Locals("role")})
	})
	app.Get("/", handlers...)
	return app
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := jwt.GenerateAccessToken(5, "olga", role, "access-secret", 15)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	app := newProtectedApp(testConfig())

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", bearer(t, "AGENT"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthMiddlewareReadsCookie(t *testing.T) {
	app := newProtectedApp(testConfig())

	token, err := jwt.GenerateAccessToken(5, "olga", "AGENT", "access-secret", 15)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "access_token="+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestStaffOnly(t *testing.T) {
	app := newProtectedApp(testConfig(), StaffOnly())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", bearer(t, "AGENT"))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	for _, role := range []string{"FINANCE", "ADMIN"} {
		req = httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", bearer(t, role))
		resp, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, role)
	}
}
