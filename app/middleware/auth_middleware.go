// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/app/services"
	"github.com/gofiber/fiber/v3"
)

// Locals keys set by the middleware in this package
const (
	LocalAdminID     = "admin_id"
	LocalCompanyID   = "company_id"
	LocalTenant      = "tenant"
	LocalTokenID     = "token_id"
	LocalTokenClaims = "token_claims"
	LocalRequestID   = "request_id"
)

// TenantResolver maps the company slug of a route to its tenant
type TenantResolver interface {
	ResolveTenant(ctx context.Context, slug string) (*services.TenantRef, error)
}

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
	tenants      TenantResolver
	// isNotFound reports whether a resolver error means the slug is unknown
	isNotFound func(error) bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService, tenants TenantResolver, isNotFound func(error) bool) *AuthMiddleware {
	if isNotFound == nil {
		isNotFound = func(error) bool { return false }
	}
	return &AuthMiddleware{
		tokenService: tokenService,
		tenants:      tenants,
		isNotFound:   isNotFound,
	}
}

// bearerToken extracts the token or writes the 401 response and returns ok=false
func bearerToken(c fiber.Ctx) (string, bool, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false, c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Authorization header is required",
			Error:   dto.ErrorDetail{Code: "MISSING_AUTHORIZATION_HEADER"},
		})
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false, c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid authorization header format. Expected 'Bearer <token>'",
			Error:   dto.ErrorDetail{Code: "INVALID_AUTHORIZATION_FORMAT"},
		})
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false, c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Access token is required",
			Error:   dto.ErrorDetail{Code: "MISSING_ACCESS_TOKEN"},
		})
	}
	return token, true, nil
}

func tokenError(c fiber.Ctx, err error) error {
	var code, msg string
	if errors.Is(err, services.ErrTokenExpired) {
		code = "TOKEN_EXPIRED"
		msg = "Access token has expired"
	} else if errors.Is(err, services.ErrTokenRevoked) {
		code = "TOKEN_REVOKED"
		msg = "Access token has been revoked"
	} else if errors.Is(err, services.ErrTokenInvalid) {
		code = "TOKEN_INVALID"
		msg = "Invalid access token"
	} else {
		code = "TOKEN_VALIDATION_FAILED"
		msg = "Token validation failed"
	}
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{Success: false, Message: msg, Error: dto.ErrorDetail{Code: code}})
}

func storeRequestID(c fiber.Ctx) {
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		c.Locals(LocalRequestID, requestID)
	}
}

// AdminAuthenticate validates admin JWTs and sets admin-specific context values
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok, err := bearerToken(c)
		if !ok {
			return err
		}

		adminClaims, err := m.tokenService.ValidateAdminToken(token)
		if err != nil {
			return tokenError(c, err)
		}
		if adminClaims.TokenType != "access" {
			return tokenError(c, services.ErrTokenInvalid)
		}

		c.Locals(LocalAdminID, adminClaims.AdminID)
		c.Locals(LocalTokenID, adminClaims.TokenID)
		c.Locals(LocalTokenClaims, adminClaims)
		storeRequestID(c)

		return c.Next()
	}
}

// TenantAuthenticate guards /companies/:slug routes. It accepts a company token issued for that
// company, or any admin token. The token is checked before the slug is resolved.
// The resolved tenant is stored in the request locals.
func (m *AuthMiddleware) TenantAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok, err := bearerToken(c)
		if !ok {
			return err
		}

		companyClaims, cerr := m.tokenService.ValidateCompanyToken(token)
		var adminClaims *services.AdminTokenClaims
		if cerr != nil {
			var aerr error
			adminClaims, aerr = m.tokenService.ValidateAdminToken(token)
			if aerr != nil {
				// report the company token failure; expired or revoked matter more than a type mismatch
				if errors.Is(cerr, services.ErrTokenInvalid) {
					return tokenError(c, aerr)
				}
				return tokenError(c, cerr)
			}
			if adminClaims.TokenType != "access" {
				return tokenError(c, services.ErrTokenInvalid)
			}
		}

		tenant, err := m.tenants.ResolveTenant(c.Context(), c.Params("slug"))
		if err != nil {
			if !m.isNotFound(err) {
				return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
					Success: false,
					Message: "Failed to resolve company",
					Error:   dto.ErrorDetail{Code: "TENANT_RESOLUTION_FAILED"},
				})
			}
			tenant = nil
		}

		if companyClaims != nil {
			// unknown and foreign slugs look the same to a company token
			if tenant == nil || companyClaims.CompanyID != tenant.ID {
				return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
					Success: false,
					Message: "Token does not grant access to this company",
					Error:   dto.ErrorDetail{Code: "TENANT_MISMATCH"},
				})
			}
			c.Locals(LocalTokenID, companyClaims.TokenID)
			c.Locals(LocalTokenClaims, companyClaims)
		} else {
			if tenant == nil {
				return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
					Success: false,
					Message: "Company not found",
					Error:   dto.ErrorDetail{Code: "COMPANY_NOT_FOUND"},
				})
			}
			c.Locals(LocalAdminID, adminClaims.AdminID)
			c.Locals(LocalTokenID, adminClaims.TokenID)
			c.Locals(LocalTokenClaims, adminClaims)
		}

		c.Locals(LocalCompanyID, tenant.ID)
		c.Locals(LocalTenant, tenant)
		storeRequestID(c)

		return c.Next()
	}
}

// GetAdminIDFromContext extracts admin ID from the request context
func GetAdminIDFromContext(c fiber.Ctx) (uint, bool) {
	adminID, ok := c.Locals(LocalAdminID).(uint)
	return adminID, ok
}

// GetCompanyIDFromContext extracts the resolved tenant id from the request context
func GetCompanyIDFromContext(c fiber.Ctx) (uint, bool) {
	companyID, ok := c.Locals(LocalCompanyID).(uint)
	return companyID, ok
}

// GetTenantFromContext extracts the resolved tenant from the request context
func GetTenantFromContext(c fiber.Ctx) (*services.TenantRef, bool) {
	tenant, ok := c.Locals(LocalTenant).(*services.TenantRef)
	return tenant, ok
}

// RequireAdminAuth ensures admin authentication is present
func RequireAdminAuth(c fiber.Ctx) error {
	adminID, exists := GetAdminIDFromContext(c)
	if !exists {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Admin authentication required",
			Error:   dto.ErrorDetail{Code: "ADMIN_AUTHENTICATION_REQUIRED"},
		})
	}
	if adminID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid admin ID",
			Error:   dto.ErrorDetail{Code: "INVALID_ADMIN_ID"},
		})
	}
	return nil
}
