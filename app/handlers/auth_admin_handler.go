package handlers

import (
	"strings"
	"time"

	"github.com/amirphl/estate-registry/app/dto"
	businessflow "github.com/amirphl/estate-registry/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// AdminAuthHandlerInterface defines the contract for admin auth handlers
type AdminAuthHandlerInterface interface {
	Login(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
}

// AdminAuthHandler implements AdminAuthHandlerInterface
type AdminAuthHandler struct {
	baseHandler
	flow businessflow.AdminAuthFlow
}

func NewAdminAuthHandler(flow businessflow.AdminAuthFlow, logger *zap.Logger, timeout time.Duration) AdminAuthHandlerInterface {
	return &AdminAuthHandler{
		baseHandler: newBaseHandler(logger, timeout),
		flow:        flow,
	}
}

// Login authenticates an admin with username and password
// @Summary Admin login
// @Description Authenticate admin with username/password and open a session
// @Tags Admin Authentication
// @Accept json
// @Produce json
// @Param request body dto.AdminLoginRequest true "Admin credentials"
// @Success 200 {object} dto.APIResponse{data=dto.AdminLoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 403 {object} dto.APIResponse "Admin inactive"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/admin/login [post]
func (h *AdminAuthHandler) Login(c fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/admin/login")
	defer cancel()

	resp, err := h.flow.Login(ctx, &req, h.metadata(c))
	if err != nil {
		return h.FlowError(c, err, "admin login")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", resp)
}

// Refresh exchanges a refresh token for a new session
// @Summary Refresh admin session
// @Tags Admin Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.RefreshTokenResponse} "Session refreshed"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid or expired refresh token"
// @Router /api/v1/auth/admin/refresh [post]
func (h *AdminAuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/admin/refresh")
	defer cancel()

	resp, err := h.flow.Refresh(ctx, &req)
	if err != nil {
		return h.FlowError(c, err, "admin refresh")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Session refreshed", resp)
}

// Logout revokes the access token of the current admin session
// @Summary Admin logout
// @Tags Admin Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse "Logged out"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/auth/admin/logout [post]
func (h *AdminAuthHandler) Logout(c fiber.Ctx) error {
	token := strings.TrimSpace(strings.TrimPrefix(c.Get("Authorization"), "Bearer "))

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/admin/logout")
	defer cancel()

	if err := h.flow.Logout(ctx, token); err != nil {
		return h.FlowError(c, err, "admin logout")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}
