package handlers

import (
	"errors"

	"dealflow/internal/core/domain"
	"dealflow/internal/pkg/logger"
	"dealflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// actorFrom builds the caller identity from the locals set by AuthMiddleware.
func actorFrom(c *fiber.Ctx) (domain.Actor, bool) {
	userID, ok := c.Locals("userID").(uint)
	if !ok || userID == 0 {
		return domain.Actor{}, false
	}
	role, _ := c.Locals("role").(string)
	return domain.Actor{UserID: userID, Role: domain.Role(role)}, true
}

// handleError maps domain errors onto HTTP statuses. Anything unknown is
// logged and reported as fallback with a 500.
func handleError(c *fiber.Ctx, err error, fallback string) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return response.BadRequest(c, verr.Error())
	case errors.Is(err, domain.ErrConsentRequired):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, "Resource not found")
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotInviter):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTerminalState),
		errors.Is(err, domain.ErrAlreadyResponded),
		errors.Is(err, domain.ErrAlreadySigned),
		errors.Is(err, domain.ErrAlreadyUsed),
		errors.Is(err, domain.ErrConcurrentUpdate),
		errors.Is(err, domain.ErrContractNotSigning),
		errors.Is(err, domain.ErrDisputeNotAllowed):
		return response.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrCodeExpired), errors.Is(err, domain.ErrInvitationExpired):
		return response.Gone(c, err.Error())
	case errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrOTPNotRequested),
		errors.Is(err, domain.ErrTooManyAttempts):
		return response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, domain.ErrCooldownActive):
		return response.TooManyRequests(c, err.Error())
	}
	logger.Error(c.UserContext(), fallback, "error", err, "path", c.Path())
	return response.InternalServerError(c, fallback)
}
