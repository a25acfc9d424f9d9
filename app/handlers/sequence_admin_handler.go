package handlers

import (
	"fmt"
	"time"

	"github.com/amirphl/estate-registry/app/dto"
	businessflow "github.com/amirphl/estate-registry/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// SequenceAdminHandlerInterface defines the admin maintenance endpoints for counters
type SequenceAdminHandlerInterface interface {
	Backfill(c fiber.Ctx) error
	RepairUIDs(c fiber.Ctx) error
	Audit(c fiber.Ctx) error
	ExportAudit(c fiber.Ctx) error
}

// SequenceAdminHandler implements SequenceAdminHandlerInterface
type SequenceAdminHandler struct {
	baseHandler
	flow businessflow.SequenceAdminFlow
}

func NewSequenceAdminHandler(flow businessflow.SequenceAdminFlow, logger *zap.Logger, timeout time.Duration) SequenceAdminHandlerInterface {
	return &SequenceAdminHandler{
		baseHandler: newBaseHandler(logger, timeout),
		flow:        flow,
	}
}

// Backfill raises counters to the highest stored sequence number
// @Summary Backfill counters
// @Description Raise each counter to the highest sequence number already stored. Counters never move down and the call is idempotent.
// @Tags Admin Sequences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BackfillRequest false "Company and kinds; empty means all"
// @Success 200 {object} dto.APIResponse{data=dto.BackfillResponse} "Backfill done"
// @Failure 400 {object} dto.APIResponse "Invalid request"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Router /api/v1/admin/sequences/backfill [post]
func (h *SequenceAdminHandler) Backfill(c fiber.Ctx) error {
	var req dto.BackfillRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/sequences/backfill")
	defer cancel()

	resp, err := h.flow.Backfill(ctx, &req, h.metadata(c))
	if err != nil {
		return h.FlowError(c, err, "backfill counters")
	}

	h.logger.Info("counters backfilled", zap.Int("companies", len(resp.Companies)), zap.Int("raised", resp.Raised))
	return h.SuccessResponse(c, fiber.StatusOK, "Backfill completed", resp)
}

// RepairUIDs numbers legacy rows and fills missing identifiers
// @Summary Repair identifiers
// @Tags Admin Sequences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RepairUIDsRequest false "Company; empty means all"
// @Success 200 {object} dto.APIResponse{data=dto.RepairUIDsResponse} "Repair done"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Router /api/v1/admin/sequences/repair-uids [post]
func (h *SequenceAdminHandler) RepairUIDs(c fiber.Ctx) error {
	var req dto.RepairUIDsRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/sequences/repair-uids")
	defer cancel()

	resp, err := h.flow.RepairUIDs(ctx, &req, h.metadata(c))
	if err != nil {
		return h.FlowError(c, err, "repair identifiers")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Repair completed", resp)
}

// Audit compares counters with stored sequence numbers
// @Summary Audit counters
// @Tags Admin Sequences
// @Produce json
// @Security BearerAuth
// @Param company_id query int false "Company ID"
// @Success 200 {object} dto.APIResponse{data=dto.SequenceAuditResponse} "Audit report"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Router /api/v1/admin/sequences/audit [get]
func (h *SequenceAdminHandler) Audit(c fiber.Ctx) error {
	req, err := h.auditRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_FILTER", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/sequences/audit")
	defer cancel()

	resp, err := h.flow.Audit(ctx, req)
	if err != nil {
		return h.FlowError(c, err, "audit counters")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Audit completed", resp)
}

// ExportAudit downloads the audit report as a spreadsheet
// @Summary Export counter audit
// @Tags Admin Sequences
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param company_id query int false "Company ID"
// @Success 200 {file} file "Audit spreadsheet"
// @Failure 404 {object} dto.APIResponse "Company not found"
// @Router /api/v1/admin/sequences/audit/export [get]
func (h *SequenceAdminHandler) ExportAudit(c fiber.Ctx) error {
	req, err := h.auditRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_FILTER", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/sequences/audit/export")
	defer cancel()

	filename, data, err := h.flow.ExportAudit(ctx, req)
	if err != nil {
		return h.FlowError(c, err, "export counter audit")
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(data)
}

func (h *SequenceAdminHandler) auditRequest(c fiber.Ctx) (*dto.SequenceAuditRequest, error) {
	companyID, err := optionalUintQuery(c, "company_id")
	if err != nil {
		return nil, err
	}
	return &dto.SequenceAuditRequest{CompanyID: companyID}, nil
}
