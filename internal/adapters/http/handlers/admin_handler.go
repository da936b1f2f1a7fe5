package handlers

import (
	"dealflow/internal/core/services"
	"dealflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler exposes maintenance operations to staff
type AdminHandler struct {
	expiryService *services.ExpiryService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(expiryService *services.ExpiryService) *AdminHandler {
	return &AdminHandler{expiryService: expiryService}
}

// RunExpiry runs the expiry sweep now instead of waiting for the schedule
// @Summary Run expiry sweep
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /admin/expiry/run [post]
func (h *AdminHandler) RunExpiry(c *fiber.Ctx) error {
	expired := h.expiryService.RunOnce(c.UserContext())
	return response.Success(c, "Expiry sweep completed", expired)
}
