package handlers

import (
	"strings"

	"dealflow/internal/core/services"
	"dealflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// InvitationHandler handles co-agent and agency invitations
type InvitationHandler struct {
	invitationService *services.InvitationService
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(invitationService *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

// DeclineRequest represents the decline body
type DeclineRequest struct {
	Reason string `json:"reason"`
}

// Invite invites a party to share the deal's commission
// @Summary Invite recipient
// @Tags Invitations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deal ID"
// @Param body body services.InviteInput true "Invitee and share"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /deals/{id}/invitations [post]
func (h *InvitationHandler) Invite(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req services.InviteInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Phone) == "" && strings.TrimSpace(req.Email) == "" {
		return response.BadRequest(c, "Phone or email is required")
	}

	inv, err := h.invitationService.Invite(c.UserContext(), actor, c.Params("id"), req)
	if err != nil {
		return handleError(c, err, "Failed to create invitation")
	}
	return response.Created(c, "Invitation sent", inv)
}

// List returns the invitations of a deal
// @Summary List invitations
// @Tags Invitations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Response
// @Router /deals/{id}/invitations [get]
func (h *InvitationHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	list, err := h.invitationService.ListByDeal(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to list invitations")
	}
	return response.Success(c, "Invitations retrieved", list)
}

// Accept joins the caller to the deal as a recipient
// @Summary Accept invitation
// @Tags Invitations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invitation ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 410 {object} response.Response
// @Router /invitations/{id}/accept [post]
func (h *InvitationHandler) Accept(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	inv, rec, err := h.invitationService.Accept(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to accept invitation")
	}
	return response.Success(c, "Invitation accepted", fiber.Map{
		"invitation": inv,
		"recipient":  rec,
	})
}

// Decline rejects an invitation
// @Summary Decline invitation
// @Tags Invitations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invitation ID"
// @Param body body DeclineRequest false "Reason"
// @Success 200 {object} response.Response
// @Router /invitations/{id}/decline [post]
func (h *InvitationHandler) Decline(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req DeclineRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	inv, err := h.invitationService.Decline(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return handleError(c, err, "Failed to decline invitation")
	}
	return response.Success(c, "Invitation declined", inv)
}

// Cancel withdraws a pending invitation
// @Summary Cancel invitation
// @Tags Invitations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invitation ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /invitations/{id} [delete]
func (h *InvitationHandler) Cancel(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	inv, err := h.invitationService.Cancel(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to cancel invitation")
	}
	return response.Success(c, "Invitation cancelled", inv)
}
