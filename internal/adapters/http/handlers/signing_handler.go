package handlers

import (
	"strings"

	"dealflow/internal/core/services"
	"dealflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SigningHandler serves the public signing link endpoints. The token in the
// path is the only credential.
type SigningHandler struct {
	signingService *services.SigningService
}

// NewSigningHandler creates a new signing handler
func NewSigningHandler(signingService *services.SigningService) *SigningHandler {
	return &SigningHandler{signingService: signingService}
}

// RequestCodeRequest carries the signer's consents
type RequestCodeRequest struct {
	ConsentPersonalData bool `json:"consent_personal_data"`
	ConsentPep          bool `json:"consent_pep"`
}

// VerifyRequest carries the confirmation code
type VerifyRequest struct {
	Code string `json:"code"`
}

// DisputeRequest represents a dispute opened from a completion act link
type DisputeRequest struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// GetSession returns what the signer sees on opening the link
// @Summary Open signing link
// @Tags Signing
// @Produce json
// @Param token path string true "Signing token"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /sign/{token} [get]
func (h *SigningHandler) GetSession(c *fiber.Ctx) error {
	view, err := h.signingService.GetSession(c.UserContext(), c.Params("token"))
	if err != nil {
		return handleError(c, err, "Failed to load signing session")
	}
	return response.Success(c, "Signing session retrieved", view)
}

// RequestCode records consent and texts a confirmation code
// @Summary Request confirmation code
// @Tags Signing
// @Accept json
// @Produce json
// @Param token path string true "Signing token"
// @Param body body RequestCodeRequest true "Consents"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /sign/{token}/request-code [post]
func (h *SigningHandler) RequestCode(c *fiber.Ctx) error {
	var req RequestCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.signingService.RequestOTP(c.UserContext(), c.Params("token"), req.ConsentPersonalData, req.ConsentPep)
	if err != nil {
		return handleError(c, err, "Failed to send confirmation code")
	}
	return response.Success(c, "Confirmation code sent", result)
}

// Verify checks the code and signs the document
// @Summary Sign with confirmation code
// @Tags Signing
// @Accept json
// @Produce json
// @Param token path string true "Signing token"
// @Param body body VerifyRequest true "Code"
// @Success 200 {object} response.Response
// @Failure 410 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /sign/{token}/verify [post]
func (h *SigningHandler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.signingService.Verify(c.UserContext(), c.Params("token"), strings.TrimSpace(req.Code))
	if err != nil {
		return handleError(c, err, "Failed to verify confirmation code")
	}
	return response.Success(c, "Document signed", result)
}

// OpenDispute contests a completion act during the hold period
// @Summary Open dispute
// @Tags Signing
// @Accept json
// @Produce json
// @Param token path string true "Signing token"
// @Param body body DisputeRequest true "Dispute"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /sign/{token}/dispute [post]
func (h *SigningHandler) OpenDispute(c *fiber.Ctx) error {
	var req DisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	dispute, err := h.signingService.OpenDispute(c.UserContext(), c.Params("token"), req.Reason, req.Description)
	if err != nil {
		return handleError(c, err, "Failed to open dispute")
	}
	return response.Created(c, "Dispute opened", dispute)
}

// ListDisputes returns the disputes raised on a deal
// @Summary List disputes
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Response
// @Router /deals/{id}/disputes [get]
func (h *SigningHandler) ListDisputes(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	disputes, err := h.signingService.ListDisputes(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to list disputes")
	}
	return response.Success(c, "Disputes retrieved", disputes)
}
