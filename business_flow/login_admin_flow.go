package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/app/services"
	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/repository"
	"github.com/amirphl/estate-registry/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthFlow represents the admin authentication flow used by handlers
type AdminAuthFlow interface {
	Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
	// EnsureBootstrapAdmin creates the first admin when the table is empty. It is a no-op otherwise.
	EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error)
}

// AdminAuthFlowImpl provides admin credential verification and session handling
type AdminAuthFlowImpl struct {
	adminRepo    repository.AdminRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	bcryptCost   int
	logger       *zap.Logger
}

func NewAdminAuthFlow(
	adminRepo repository.AdminRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	bcryptCost int,
	logger *zap.Logger,
) AdminAuthFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AdminAuthFlowImpl{
		adminRepo:    adminRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		bcryptCost:   bcryptCost,
		logger:       logger.Named("admin_auth"),
	}
}

func (af *AdminAuthFlowImpl) Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error) {
	if req == nil || len(req.Username) == 0 || len(req.Password) == 0 {
		return nil, NewBusinessError("ADMIN_LOGIN_VALIDATION_FAILED", "Admin login validation failed", ErrIncorrectPassword)
	}
	username := strings.TrimSpace(req.Username)

	admin, err := af.adminRepo.ByUsername(ctx, username)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LOOKUP_FAILED", "Failed to lookup admin", err)
	}
	if admin == nil {
		af.recordFailure(ctx, username, ErrAdminNotFound, metadata)
		return nil, NewBusinessError("ADMIN_NOT_FOUND", "Admin not found", ErrAdminNotFound)
	}
	if !utils.IsTrue(admin.IsActive) {
		af.recordFailure(ctx, username, ErrAdminInactive, metadata)
		return nil, NewBusinessError("ADMIN_INACTIVE", "Admin account is inactive", ErrAdminInactive)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		af.recordFailure(ctx, username, ErrIncorrectPassword, metadata)
		return nil, NewBusinessError("ADMIN_INCORRECT_PASSWORD", "Incorrect password", ErrIncorrectPassword)
	}

	accessToken, refreshToken, err := af.tokenService.GenerateAdminTokens(admin.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	if err := af.adminRepo.TouchLastLogin(ctx, admin.ID); err != nil {
		af.logger.Warn("Failed to update last login", zap.Uint("admin_id", admin.ID), zap.Error(err))
	} else {
		admin.LastLoginAt = utils.ToPtr(utils.UTCNow())
	}

	if metadata != nil {
		metadata.SetAdminID(admin.ID)
	}
	_ = recordAudit(ctx, af.auditRepo, auditEntry{
		action:      models.AuditActionAdminLoginSuccess,
		description: "Admin " + admin.Username + " logged in",
		success:     true,
	}, metadata)

	return &dto.AdminLoginResponse{
		Admin:   ToAdminDTO(*admin),
		Session: ToSessionDTO(accessToken, refreshToken, af.tokenService.AccessTokenTTL()),
	}, nil
}

func (af *AdminAuthFlowImpl) recordFailure(ctx context.Context, username string, cause error, metadata *ClientMetadata) {
	errMsg := cause.Error()
	_ = recordAudit(ctx, af.auditRepo, auditEntry{
		action:      models.AuditActionAdminLoginFailed,
		description: "Admin login failed for " + username,
		success:     false,
		errMsg:      &errMsg,
	}, metadata)
}

func (af *AdminAuthFlowImpl) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error) {
	if req == nil || req.RefreshToken == "" {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Refresh token is required", services.ErrTokenInvalid)
	}
	accessToken, refreshToken, err := af.tokenService.RefreshAdminToken(req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Failed to refresh token", err)
	}
	return &dto.RefreshTokenResponse{
		Session: ToSessionDTO(accessToken, refreshToken, af.tokenService.AccessTokenTTL()),
	}, nil
}

func (af *AdminAuthFlowImpl) Logout(ctx context.Context, accessToken string) error {
	if err := af.tokenService.RevokeToken(accessToken); err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Failed to revoke token", err)
	}
	return nil
}

func (af *AdminAuthFlowImpl) EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}

	count, err := af.adminRepo.Count(ctx, models.AdminFilter{})
	if err != nil {
		return false, NewBusinessError("ADMIN_LOOKUP_FAILED", "Failed to count admins", err)
	}
	if count > 0 {
		return false, nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), af.bcryptCost)
	if err != nil {
		return false, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}
	admin := &models.Admin{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: string(hashed),
		IsActive:     utils.ToPtr(true),
	}
	if err := af.adminRepo.Save(ctx, admin); err != nil {
		if repository.IsDuplicate(err) {
			return false, nil
		}
		return false, NewBusinessError("ADMIN_CREATION_FAILED", "Failed to create admin", err)
	}

	af.logger.Info("Bootstrap admin created", zap.String("username", username), zap.Uint("admin_id", admin.ID))
	return true, nil
}
