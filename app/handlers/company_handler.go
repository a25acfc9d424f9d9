package handlers

import (
	"strconv"
	"time"

	"github.com/amirphl/estate-registry/app/dto"
	businessflow "github.com/amirphl/estate-registry/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// CompanyHandlerInterface defines the admin endpoints that manage companies
type CompanyHandlerInterface interface {
	Onboard(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	OverridePrefix(c fiber.Ctx) error
	RotateAPIKey(c fiber.Ctx) error
	Activate(c fiber.Ctx) error
	Deactivate(c fiber.Ctx) error
	Remove(c fiber.Ctx) error
}

// CompanyHandler implements CompanyHandlerInterface
type CompanyHandler struct {
	baseHandler
	flow businessflow.CompanyFlow
}

func NewCompanyHandler(flow businessflow.CompanyFlow, logger *zap.Logger, timeout time.Duration) CompanyHandlerInterface {
	return &CompanyHandler{
		baseHandler: newBaseHandler(logger, timeout),
		flow:        flow,
	}
}

// Onboard registers a new company and returns its API key
// @Summary Onboard company
// @Description Create a company. The identifier prefix is derived from the name unless uid_prefix is given. The API key is only returned once.
// @Tags Admin Companies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.OnboardCompanyRequest true "Company data"
// @Success 201 {object} dto.APIResponse{data=dto.OnboardCompanyResponse} "Company created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Company or prefix already exists"
// @Router /api/v1/admin/companies [post]
func (h *CompanyHandler) Onboard(c fiber.Ctx) error {
	var req dto.OnboardCompanyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/companies")
	defer cancel()

	resp, err := h.flow.Onboard(ctx, &req, h.metadata(c))
	if err != nil {
		return h.FlowError(c, err, "onboard company")
	}

	h.logger.Info("company onboarded",
		zap.Uint("company_id", resp.Company.ID),
		zap.String("slug", resp.Company.Slug),
		zap.String("prefix", resp.Company.UIDPrefix))
	return h.SuccessResponse(c, fiber.StatusCreated, "Company created", resp)
}

// List returns companies page by page
// @Summary List companies
// @Tags Admin Companies
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param is_active query bool false "Filter by active flag"
// @Success 200 {object} dto.APIResponse{data=dto.ListCompaniesResponse} "Companies"
// @Failure 400 {object} dto.APIResponse "Invalid pagination"
// @Router /api/v1/admin/companies [get]
func (h *CompanyHandler) List(c fiber.Ctx) error {
	page, err := pageRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
	}
	req := dto.ListCompaniesRequest{PageRequest: page}
	if v := c.Query("is_active"); v != "" {
		active, perr := strconv.ParseBool(v)
		if perr != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "is_active must be true or false", "INVALID_FILTER", nil)
		}
		req.IsActive = &active
	}
	if ok, verr := h.validate(c, &req); !ok {
		return verr
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/companies")
	defer cancel()

	resp, err := h.flow.List(ctx, &req)
	if err != nil {
		return h.FlowError(c, err, "list companies")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Companies retrieved", resp)
}

// Get returns a company with its counters and next identifiers
// @Summary Get company
// @Tags Admin Companies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDetailResponse} "Company"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Router /api/v1/admin/companies/{id} [get]
func (h *CompanyHandler) Get(c fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_COMPANY_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/companies/:id")
	defer cancel()

	resp, err := h.flow.Get(ctx, id)
	if err != nil {
		return h.FlowError(c, err, "get company")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Company retrieved", resp)
}

// OverridePrefix replaces the identifier prefix of a company. Issued identifiers keep their old prefix.
// @Summary Override identifier prefix
// @Tags Admin Companies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Param request body dto.OverridePrefixRequest true "New prefix"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDTO} "Prefix updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Failure 409 {object} dto.APIResponse "Prefix taken"
// @Router /api/v1/admin/companies/{id}/prefix [put]
func (h *CompanyHandler) OverridePrefix(c fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_COMPANY_ID", nil)
	}
	var req dto.OverridePrefixRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, verr := h.validate(c, &req); !ok {
		return verr
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/companies/:id/prefix")
	defer cancel()

	resp, err := h.flow.OverridePrefix(ctx, id, &req, h.metadata(c))
	if err != nil {
		return h.FlowError(c, err, "override prefix")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Prefix updated", resp)
}

// RotateAPIKey issues a new API key. The previous key stops working immediately.
// @Summary Rotate API key
// @Tags Admin Companies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Success 200 {object} dto.APIResponse{data=dto.RotateAPIKeyResponse} "Key rotated"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Router /api/v1/admin/companies/{id}/api-key [post]
func (h *CompanyHandler) RotateAPIKey(c fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_COMPANY_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/companies/:id/api-key")
	defer cancel()

	resp, err := h.flow.RotateAPIKey(ctx, id, h.metadata(c))
	if err != nil {
		return h.FlowError(c, err, "rotate api key")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "API key rotated", resp)
}

// Activate re-enables a company
// @Summary Activate company
// @Tags Admin Companies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDTO} "Company activated"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Router /api/v1/admin/companies/{id}/activate [post]
func (h *CompanyHandler) Activate(c fiber.Ctx) error {
	return h.setActive(c, true)
}

// Deactivate disables a company. Identifier allocation for it is refused until it is activated again.
// @Summary Deactivate company
// @Tags Admin Companies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyDTO} "Company deactivated"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Router /api/v1/admin/companies/{id}/deactivate [post]
func (h *CompanyHandler) Deactivate(c fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *CompanyHandler) setActive(c fiber.Ctx, active bool) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_COMPANY_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/companies/:id/active")
	defer cancel()

	resp, err := h.flow.SetActive(ctx, id, active, h.metadata(c))
	if err != nil {
		return h.FlowError(c, err, "set company active")
	}

	msg := "Company deactivated"
	if active {
		msg = "Company activated"
	}
	return h.SuccessResponse(c, fiber.StatusOK, msg, resp)
}

// Remove soft-deletes a company
// @Summary Remove company
// @Tags Admin Companies
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Success 200 {object} dto.APIResponse "Company removed"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Router /api/v1/admin/companies/{id} [delete]
func (h *CompanyHandler) Remove(c fiber.Ctx) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_COMPANY_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/companies/:id")
	defer cancel()

	if err := h.flow.Remove(ctx, id, h.metadata(c)); err != nil {
		return h.FlowError(c, err, "remove company")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Company removed", nil)
}
