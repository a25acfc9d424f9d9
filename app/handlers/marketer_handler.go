package handlers

import (
	"time"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/app/middleware"
	businessflow "github.com/amirphl/estate-registry/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// MarketerHandlerInterface defines the tenant endpoints for marketers
type MarketerHandlerInterface interface {
	Register(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	List(c fiber.Ctx) error
}

// MarketerHandler implements MarketerHandlerInterface
type MarketerHandler struct {
	baseHandler
	flow businessflow.MarketerFlow
}

func NewMarketerHandler(flow businessflow.MarketerFlow, logger *zap.Logger, timeout time.Duration) MarketerHandlerInterface {
	return &MarketerHandler{
		baseHandler: newBaseHandler(logger, timeout),
		flow:        flow,
	}
}

// Register creates a marketer and assigns its company identifier
// @Summary Register marketer
// @Tags Marketers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Company slug"
// @Param request body dto.RegisterMarketerRequest true "Marketer data"
// @Success 201 {object} dto.APIResponse{data=dto.MarketerDTO} "Marketer registered"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Email exists or identifier conflict"
// @Failure 503 {object} dto.APIResponse "Allocation unavailable, retry"
// @Router /api/v1/companies/{slug}/marketers [post]
func (h *MarketerHandler) Register(c fiber.Ctx) error {
	companyID, ok := middleware.GetCompanyIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Company context required", "TENANT_REQUIRED", nil)
	}

	var req dto.RegisterMarketerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/companies/:slug/marketers")
	defer cancel()

	resp, err := h.flow.Register(ctx, companyID, &req, h.metadata(c))
	if err != nil {
		return h.FlowError(c, err, "register marketer")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Marketer registered", resp)
}

// Get returns one marketer of the company
// @Summary Get marketer
// @Tags Marketers
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Company slug"
// @Param id path int true "Marketer ID"
// @Success 200 {object} dto.APIResponse{data=dto.MarketerDTO} "Marketer"
// @Failure 404 {object} dto.APIResponse "Marketer not found"
// @Router /api/v1/companies/{slug}/marketers/{id} [get]
func (h *MarketerHandler) Get(c fiber.Ctx) error {
	companyID, ok := middleware.GetCompanyIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Company context required", "TENANT_REQUIRED", nil)
	}
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_MARKETER_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/companies/:slug/marketers/:id")
	defer cancel()

	resp, err := h.flow.Get(ctx, companyID, id)
	if err != nil {
		return h.FlowError(c, err, "get marketer")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Marketer retrieved", resp)
}

// List returns the marketers of the company ordered by identifier
// @Summary List marketers
// @Tags Marketers
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Company slug"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListMarketersResponse} "Marketers"
// @Router /api/v1/companies/{slug}/marketers [get]
func (h *MarketerHandler) List(c fiber.Ctx) error {
	companyID, ok := middleware.GetCompanyIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Company context required", "TENANT_REQUIRED", nil)
	}
	page, err := pageRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
	}
	req := dto.ListMembersRequest{PageRequest: page}
	if ok, verr := h.validate(c, &req); !ok {
		return verr
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/companies/:slug/marketers")
	defer cancel()

	resp, err := h.flow.List(ctx, companyID, &req)
	if err != nil {
		return h.FlowError(c, err, "list marketers")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Marketers retrieved", resp)
}
