package businessflow

import (
	"context"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/app/services"
	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/repository"
	"go.uber.org/zap"
)

// CompanyAuthFlow exchanges a company API key for a company scoped access token
type CompanyAuthFlow interface {
	IssueToken(ctx context.Context, req *dto.CompanyTokenRequest, metadata *ClientMetadata) (*dto.CompanyTokenResponse, error)
}

// CompanyAuthFlowImpl implements CompanyAuthFlow
type CompanyAuthFlowImpl struct {
	companyRepo  repository.CompanyRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	logger       *zap.Logger
}

func NewCompanyAuthFlow(
	companyRepo repository.CompanyRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	logger *zap.Logger,
) CompanyAuthFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyAuthFlowImpl{
		companyRepo:  companyRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		logger:       logger.Named("company_auth"),
	}
}

func (f *CompanyAuthFlowImpl) IssueToken(ctx context.Context, req *dto.CompanyTokenRequest, metadata *ClientMetadata) (*dto.CompanyTokenResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_API_KEY", "Invalid API key", ErrInvalidAPIKey)
	}
	companyUUID, secret, err := ParseAPIKey(req.APIKey)
	if err != nil {
		return nil, NewBusinessError("INVALID_API_KEY", "Invalid API key", err)
	}

	company, err := f.companyRepo.ByUUID(ctx, companyUUID)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to lookup company", err)
	}
	if company == nil || !VerifyAPIKeySecret(company.APIKeyHash, secret) {
		var companyID *uint
		if company != nil {
			companyID = &company.ID
		}
		f.deny(ctx, companyID, ErrInvalidAPIKey, metadata)
		return nil, NewBusinessError("INVALID_API_KEY", "Invalid API key", ErrInvalidAPIKey)
	}
	if !company.Active() {
		f.deny(ctx, &company.ID, ErrCompanyInactive, metadata)
		return nil, NewBusinessError("COMPANY_INACTIVE", "Company is inactive", ErrCompanyInactive)
	}

	token, err := f.tokenService.GenerateCompanyToken(company.ID, company.Slug)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate token", err)
	}

	_ = recordAudit(ctx, f.auditRepo, auditEntry{
		companyID:   &company.ID,
		action:      models.AuditActionCompanyTokenIssued,
		description: "Company token issued",
		success:     true,
	}, metadata)

	return &dto.CompanyTokenResponse{
		Company: ToCompanyDTO(*company),
		Session: ToSessionDTO(token, "", f.tokenService.CompanyTokenTTL()),
	}, nil
}

func (f *CompanyAuthFlowImpl) deny(ctx context.Context, companyID *uint, cause error, metadata *ClientMetadata) {
	errMsg := cause.Error()
	_ = recordAudit(ctx, f.auditRepo, auditEntry{
		companyID:   companyID,
		action:      models.AuditActionCompanyTokenDenied,
		description: "Company token denied",
		success:     false,
		errMsg:      &errMsg,
	}, metadata)
	f.logger.Warn("Company token denied", zap.Error(cause))
}
