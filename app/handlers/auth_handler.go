package handlers

import (
	"time"

	"github.com/amirphl/estate-registry/app/dto"
	businessflow "github.com/amirphl/estate-registry/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// CompanyAuthHandlerInterface defines the contract for company token issuance
type CompanyAuthHandlerInterface interface {
	IssueToken(c fiber.Ctx) error
}

// CompanyAuthHandler implements CompanyAuthHandlerInterface
type CompanyAuthHandler struct {
	baseHandler
	flow businessflow.CompanyAuthFlow
}

func NewCompanyAuthHandler(flow businessflow.CompanyAuthFlow, logger *zap.Logger, timeout time.Duration) CompanyAuthHandlerInterface {
	return &CompanyAuthHandler{
		baseHandler: newBaseHandler(logger, timeout),
		flow:        flow,
	}
}

// IssueToken exchanges a company API key for an access token scoped to that company
// @Summary Company token
// @Description Exchange a company API key for a short lived access token
// @Tags Company Authentication
// @Accept json
// @Produce json
// @Param request body dto.CompanyTokenRequest true "API key"
// @Success 200 {object} dto.APIResponse{data=dto.CompanyTokenResponse} "Token issued"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid API key"
// @Failure 403 {object} dto.APIResponse "Company inactive"
// @Router /api/v1/auth/company/token [post]
func (h *CompanyAuthHandler) IssueToken(c fiber.Ctx) error {
	var req dto.CompanyTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/company/token")
	defer cancel()

	resp, err := h.flow.IssueToken(ctx, &req, h.metadata(c))
	if err != nil {
		return h.FlowError(c, err, "company token")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Token issued", resp)
}
