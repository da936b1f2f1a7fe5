package handlers

import (
	"strings"

	"dealflow/internal/core/domain"
	"dealflow/internal/core/services"
	"dealflow/internal/pkg/pagination"
	"dealflow/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// DealHandler handles deal endpoints
type DealHandler struct {
	dealService *services.DealService
}

// NewDealHandler creates a new deal handler
func NewDealHandler(dealService *services.DealService) *DealHandler {
	return &DealHandler{dealService: dealService}
}

// CreateDealRequest represents the deal creation body
type CreateDealRequest struct {
	Type            domain.DealType `json:"type"`
	PropertyAddress string          `json:"property_address"`
	Price           decimal.Decimal `json:"price"`
	domain.CommissionTerms
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	ClientEmail string `json:"client_email"`
}

// TransitionRequest represents a status change request
type TransitionRequest struct {
	Status domain.DealStatus `json:"status"`
	Reason string            `json:"reason"`
}

// OwnerSplitRequest represents the owner's share update
type OwnerSplitRequest struct {
	SplitPercent decimal.Decimal `json:"split_percent"`
}

// Quote prices a commission without creating a deal
// @Summary Quote commission
// @Description Run the commission calculator on the given terms
// @Tags Deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body domain.CommissionInput true "Price and commission terms"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /deals/quote [post]
func (h *DealHandler) Quote(c *fiber.Ctx) error {
	var req domain.CommissionInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	breakdown, err := h.dealService.Quote(req)
	if err != nil {
		return handleError(c, err, "Failed to calculate commission")
	}
	return response.Success(c, "Commission calculated", breakdown)
}

// Create opens a draft deal owned by the caller
// @Summary Create deal
// @Tags Deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateDealRequest true "Deal data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /deals [post]
func (h *DealHandler) Create(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req CreateDealRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	view, err := h.dealService.Create(c.UserContext(), actor, domain.NewDealInput{
		Type:            req.Type,
		PropertyAddress: req.PropertyAddress,
		Price:           req.Price,
		Terms:           req.CommissionTerms,
		ClientName:      strings.TrimSpace(req.ClientName),
		ClientPhone:     req.ClientPhone,
		ClientEmail:     strings.TrimSpace(req.ClientEmail),
	})
	if err != nil {
		return handleError(c, err, "Failed to create deal")
	}
	return response.Created(c, "Deal created", view)
}

// List returns the deals visible to the caller
// @Summary List deals
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /deals [get]
func (h *DealHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	params := pagination.GetParams(c)
	status := domain.DealStatus(c.Query("status"))

	deals, total, err := h.dealService.List(c.UserContext(), actor, status, params.Offset, params.Limit)
	if err != nil {
		return handleError(c, err, "Failed to list deals")
	}
	return response.Success(c, "Deals retrieved", pagination.NewPage(deals, params, total))
}

// Get returns one deal with its recipients and allowed transitions
// @Summary Get deal
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /deals/{id} [get]
func (h *DealHandler) Get(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	view, err := h.dealService.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to get deal")
	}
	return response.Success(c, "Deal retrieved", view)
}

// Transition moves a deal to another status
// @Summary Change deal status
// @Tags Deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deal ID"
// @Param body body TransitionRequest true "Target status"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /deals/{id}/transition [post]
func (h *DealHandler) Transition(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Status == "" {
		return response.BadRequest(c, "Status is required")
	}

	deal, err := h.dealService.Transition(c.UserContext(), actor, c.Params("id"), req.Status, strings.TrimSpace(req.Reason))
	if err != nil {
		return handleError(c, err, "Failed to change deal status")
	}
	return response.Success(c, "Deal status changed", deal)
}

// Submit sends the deal's agreements out for signature
// @Summary Submit deal for signing
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /deals/{id}/submit [post]
func (h *DealHandler) Submit(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	deal, links, err := h.dealService.SubmitForSigning(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to submit deal for signing")
	}
	return response.Success(c, "Deal submitted for signing", fiber.Map{
		"deal":  deal,
		"links": links,
	})
}

// SetOwnerSplit changes the owner's share of the agent commission
// @Summary Set owner split
// @Tags Deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deal ID"
// @Param body body OwnerSplitRequest true "Owner share in percent"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /deals/{id}/owner-split [put]
func (h *DealHandler) SetOwnerSplit(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req OwnerSplitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	rec, err := h.dealService.SetOwnerSplit(c.UserContext(), actor, c.Params("id"), req.SplitPercent)
	if err != nil {
		return handleError(c, err, "Failed to update owner split")
	}
	return response.Success(c, "Owner split updated", rec)
}

// History returns the status change log of a deal
// @Summary Deal history
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Response
// @Router /deals/{id}/history [get]
func (h *DealHandler) History(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	history, err := h.dealService.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return handleError(c, err, "Failed to get deal history")
	}
	return response.Success(c, "Deal history retrieved", history)
}
