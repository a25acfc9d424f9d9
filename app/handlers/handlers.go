// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/app/middleware"
	"github.com/amirphl/estate-registry/app/services"
	businessflow "github.com/amirphl/estate-registry/business_flow"
	"github.com/amirphl/estate-registry/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

// allocationRetryAfter is sent with 503 responses when the allocator gave up
const allocationRetryAfter = "1"

// baseHandler holds what every handler needs: validation, logging and response helpers
type baseHandler struct {
	validator *validator.Validate
	logger    *zap.Logger
	timeout   time.Duration
}

func newBaseHandler(logger *zap.Logger, timeout time.Duration) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return baseHandler{
		validator: validator.New(),
		logger:    logger,
		timeout:   timeout,
	}
}

// ErrorResponse standard JSON error
func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

// SuccessResponse standard JSON success
func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and renders the 400 response; ok is false when the response was written
func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	if err := h.validator.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
		}
		var validationErrors []string
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, getValidationErrorMessage(fe))
		}
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return true, nil
}

// metadata collects caller details for the audit log
func (h *baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID := requestIDOf(c); requestID != "" {
		metadata.SetRequestID(requestID)
	}
	if adminID, ok := middleware.GetAdminIDFromContext(c); ok {
		metadata.SetAdminID(adminID)
	}
	return metadata
}

func requestIDOf(c fiber.Ctx) string {
	if id, ok := c.Locals(middleware.LocalRequestID).(string); ok && id != "" {
		return id
	}
	return c.Get("X-Request-ID")
}

// createRequestContext builds the context flows run under. The caller must call cancel.
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestIDOf(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, h.timeout)
	return ctx, cancel
}

// FlowError maps a business flow error onto an HTTP response
func (h *baseHandler) FlowError(c fiber.Ctx, err error, action string) error {
	status, code, message := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error(action+" failed",
			zap.String("request_id", requestIDOf(c)),
			zap.String("path", c.Path()),
			zap.Error(err))
	} else {
		h.logger.Debug(action+" rejected", zap.String("code", code), zap.Error(err))
	}
	if status == fiber.StatusServiceUnavailable {
		c.Set(fiber.HeaderRetryAfter, allocationRetryAfter)
	}
	return h.ErrorResponse(c, status, message, code, nil)
}

// errorStatus picks the status, code and message for err. Order matters: the allocator wraps
// conflict errors in its unavailable error and inactive companies in its invalid tenant error.
func errorStatus(err error) (int, string, string) {
	switch {
	case businessflow.IsAllocationUnavailable(err):
		return fiber.StatusServiceUnavailable, "ALLOCATION_UNAVAILABLE", "Identifier allocation is temporarily unavailable, retry later"
	case businessflow.IsUnknownCounterKind(err):
		return fiber.StatusInternalServerError, "UNKNOWN_COUNTER_KIND", "Unknown counter kind"
	case businessflow.IsInvalidTenant(err):
		return fiber.StatusUnprocessableEntity, "INVALID_TENANT", "Company does not exist or is inactive"
	case businessflow.IsMemberConflict(err):
		return fiber.StatusConflict, codeOr(err, "MEMBER_CONFLICT"), "Record conflicts with an existing one; counters may need a backfill"
	case businessflow.IsMemberEmailExists(err):
		return fiber.StatusConflict, codeOr(err, "EMAIL_EXISTS"), "Email already registered in this company"
	case businessflow.IsMarketerOfOtherCompany(err):
		return fiber.StatusUnprocessableEntity, "MARKETER_NOT_IN_COMPANY", "Marketer does not belong to this company"
	case businessflow.IsMemberValidation(err), businessflow.IsCompanyNameRequired(err), businessflow.IsPrefixInvalid(err):
		return fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case businessflow.IsInvalidPage(err), businessflow.IsInvalidPageSize(err):
		return fiber.StatusBadRequest, "INVALID_PAGINATION", err.Error()
	case businessflow.IsCompanyNotFound(err):
		return fiber.StatusNotFound, "COMPANY_NOT_FOUND", "Company not found"
	case businessflow.IsClientNotFound(err):
		return fiber.StatusNotFound, "CLIENT_NOT_FOUND", "Client not found"
	case businessflow.IsMarketerNotFound(err):
		return fiber.StatusNotFound, "MARKETER_NOT_FOUND", "Marketer not found"
	case businessflow.IsCompanyAlreadyExists(err):
		return fiber.StatusConflict, "COMPANY_ALREADY_EXISTS", "Company already exists"
	case businessflow.IsPrefixTaken(err):
		return fiber.StatusConflict, "PREFIX_TAKEN", "Identifier prefix already used by another company"
	case businessflow.IsCompanyInactive(err):
		return fiber.StatusForbidden, "COMPANY_INACTIVE", "Company is inactive"
	case businessflow.IsInvalidAPIKey(err):
		return fiber.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key"
	case businessflow.IsAdminNotFound(err), businessflow.IsIncorrectPassword(err):
		return fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect username or password"
	case businessflow.IsAdminInactive(err):
		return fiber.StatusForbidden, "ADMIN_INACTIVE", "Admin inactive"
	case errors.Is(err, services.ErrTokenExpired):
		return fiber.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired"
	case errors.Is(err, services.ErrTokenRevoked):
		return fiber.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked"
	case errors.Is(err, services.ErrTokenInvalid):
		return fiber.StatusUnauthorized, "TOKEN_INVALID", "Invalid token"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "REQUEST_TIMEOUT", "Request timed out"
	default:
		return fiber.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}

func codeOr(err error, fallback string) string {
	if code := businessflow.BusinessCode(err); code != "" {
		return code
	}
	return fallback
}

// uintParam reads a positive integer route parameter
func uintParam(c fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return uint(v), nil
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "alphanum":
		return err.Field() + " must contain only letters and digits"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// pageRequest reads page and page_size from the query string
func pageRequest(c fiber.Ctx) (dto.PageRequest, error) {
	var page dto.PageRequest
	if v := c.Query("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return page, fmt.Errorf("invalid page: %q", v)
		}
		page.Page = p
	}
	if v := c.Query("page_size"); v != "" {
		ps, err := strconv.Atoi(v)
		if err != nil {
			return page, fmt.Errorf("invalid page_size: %q", v)
		}
		page.PageSize = ps
	}
	return page, nil
}

// optionalUintQuery reads an optional positive integer query parameter
func optionalUintQuery(c fiber.Ctx, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil, fmt.Errorf("invalid %s: %q", name, raw)
	}
	id := uint(v)
	return &id, nil
}
