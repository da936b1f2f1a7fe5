package handlers

import (
	"dealflow/internal/core/domain"
	"dealflow/internal/core/services"
	"dealflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ContractHandler handles contract generation and dispatch
type ContractHandler struct {
	contractService *services.ContractService
}

// NewContractHandler creates a new contract handler
func NewContractHandler(contractService *services.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

// SignerRequest is one explicit signer of a generated contract
type SignerRequest struct {
	UserID uint              `json:"user_id"`
	Name   string            `json:"name"`
	Role   domain.SignerRole `json:"role"`
	Phone  string            `json:"phone"`
}

// GenerateContractRequest represents the contract generation body
type GenerateContractRequest struct {
	ContractType domain.ContractType `json:"contract_type"`
	Signers      []SignerRequest     `json:"signers"`
}

// Generate creates a draft contract for a deal
// @Summary Generate contract
// @Description Without signers the deal owner, the client and any co-agents sign
// @Tags Contracts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deal ID"
// @Param body body GenerateContractRequest true "Contract type and optional signers"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /deals/{id}/contracts [post]
func (h *ContractHandler) Generate(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req GenerateContractRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.ContractType == "" {
		return response.BadRequest(c, "Contract type is required")
	}

	var signers []domain.Signer
	for _, s := range req.Signers {
		signers = append(signers, domain.Signer{UserID: s.UserID, Name: s.Name, Role: s.Role, Phone: s.Phone})
	}

	contract, err := h.contractService.Generate(c.UserContext(), actor, c.Params("id"), req.ContractType, signers)
	if err != nil {
		return handleError(c, err, "Failed to generate contract")
	}
	return response.Created(c, "Contract generated", contract)
}

// List returns the contracts of a deal
// @Summary List contracts
// @Tags Contracts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Response
// @Router /deals/{id}/contracts [get]
func (h *ContractHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	list, err := h.contractService.ListByDeal(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to list contracts")
	}
	return response.Success(c, "Contracts retrieved", list)
}

// Get returns one contract
// @Summary Get contract
// @Tags Contracts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Response
// @Router /contracts/{id} [get]
func (h *ContractHandler) Get(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	view, err := h.contractService.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to get contract")
	}
	return response.Success(c, "Contract retrieved", view)
}

// Send texts signing links to every signer of a draft contract
// @Summary Send contract
// @Tags Contracts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /contracts/{id}/send [post]
func (h *ContractHandler) Send(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	links, err := h.contractService.Send(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to send contract")
	}
	return response.Success(c, "Contract sent for signature", links)
}

// Cancel withdraws a contract that is not fully signed
// @Summary Cancel contract
// @Tags Contracts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Response
// @Router /contracts/{id}/cancel [post]
func (h *ContractHandler) Cancel(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	contract, err := h.contractService.Cancel(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to cancel contract")
	}
	return response.Success(c, "Contract cancelled", contract)
}
