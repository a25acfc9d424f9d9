package handlers

import (
	"time"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/app/middleware"
	businessflow "github.com/amirphl/estate-registry/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ClientHandlerInterface defines the tenant endpoints for clients
type ClientHandlerInterface interface {
	Register(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	List(c fiber.Ctx) error
}

// ClientHandler implements ClientHandlerInterface
type ClientHandler struct {
	baseHandler
	flow businessflow.ClientFlow
}

func NewClientHandler(flow businessflow.ClientFlow, logger *zap.Logger, timeout time.Duration) ClientHandlerInterface {
	return &ClientHandler{
		baseHandler: newBaseHandler(logger, timeout),
		flow:        flow,
	}
}

// Register creates a client and assigns its company identifier
// @Summary Register client
// @Description Create a client under the company. The next identifier (for example LPL-CLT005) is allocated in the same transaction.
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Company slug"
// @Param request body dto.RegisterClientRequest true "Client data"
// @Success 201 {object} dto.APIResponse{data=dto.ClientDTO} "Client registered"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Email exists or identifier conflict"
// @Failure 422 {object} dto.APIResponse "Invalid tenant or marketer"
// @Failure 503 {object} dto.APIResponse "Allocation unavailable, retry"
// @Router /api/v1/companies/{slug}/clients [post]
func (h *ClientHandler) Register(c fiber.Ctx) error {
	companyID, ok := middleware.GetCompanyIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Company context required", "TENANT_REQUIRED", nil)
	}

	var req dto.RegisterClientRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/companies/:slug/clients")
	defer cancel()

	resp, err := h.flow.Register(ctx, companyID, &req, h.metadata(c))
	if err != nil {
		return h.FlowError(c, err, "register client")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Client registered", resp)
}

// Get returns one client of the company
// @Summary Get client
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Company slug"
// @Param id path int true "Client ID"
// @Success 200 {object} dto.APIResponse{data=dto.ClientDTO} "Client"
// @Failure 404 {object} dto.APIResponse "Client not found"
// @Router /api/v1/companies/{slug}/clients/{id} [get]
func (h *ClientHandler) Get(c fiber.Ctx) error {
	companyID, ok := middleware.GetCompanyIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Company context required", "TENANT_REQUIRED", nil)
	}
	id, err := uintParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_CLIENT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/companies/:slug/clients/:id")
	defer cancel()

	resp, err := h.flow.Get(ctx, companyID, id)
	if err != nil {
		return h.FlowError(c, err, "get client")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Client retrieved", resp)
}

// List returns the clients of the company ordered by identifier
// @Summary List clients
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Company slug"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param marketer_id query int false "Only clients of this marketer"
// @Success 200 {object} dto.APIResponse{data=dto.ListClientsResponse} "Clients"
// @Router /api/v1/companies/{slug}/clients [get]
func (h *ClientHandler) List(c fiber.Ctx) error {
	companyID, ok := middleware.GetCompanyIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Company context required", "TENANT_REQUIRED", nil)
	}
	page, err := pageRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
	}
	marketerID, err := optionalUintQuery(c, "marketer_id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_FILTER", nil)
	}
	req := dto.ListMembersRequest{PageRequest: page, MarketerID: marketerID}
	if ok, verr := h.validate(c, &req); !ok {
		return verr
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/companies/:slug/clients")
	defer cancel()

	resp, err := h.flow.List(ctx, companyID, &req)
	if err != nil {
		return h.FlowError(c, err, "list clients")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Clients retrieved", resp)
}
