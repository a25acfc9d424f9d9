package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/repository"
	"github.com/amirphl/estate-registry/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MarketerFlow registers and lists the marketers of one company
type MarketerFlow interface {
	Register(ctx context.Context, companyID uint, req *dto.RegisterMarketerRequest, metadata *ClientMetadata) (*dto.MarketerDTO, error)
	Get(ctx context.Context, companyID, marketerID uint) (*dto.MarketerDTO, error)
	List(ctx context.Context, companyID uint, req *dto.ListMembersRequest) (*dto.ListMarketersResponse, error)
}

// MarketerFlowImpl implements MarketerFlow
type MarketerFlowImpl struct {
	marketerRepo repository.MarketerUserRepository
	auditRepo    repository.AuditLogRepository
	allocator    SequenceAllocator
	bcryptCost   int
	logger       *zap.Logger
}

func NewMarketerFlow(
	marketerRepo repository.MarketerUserRepository,
	auditRepo repository.AuditLogRepository,
	allocator SequenceAllocator,
	bcryptCost int,
	logger *zap.Logger,
) MarketerFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &MarketerFlowImpl{
		marketerRepo: marketerRepo,
		auditRepo:    auditRepo,
		allocator:    allocator,
		bcryptCost:   bcryptCost,
		logger:       logger.Named("marketer_flow"),
	}
}

// Register creates a marketer numbered from the company's marketer sequence
func (f *MarketerFlowImpl) Register(ctx context.Context, companyID uint, req *dto.RegisterMarketerRequest, metadata *ClientMetadata) (*dto.MarketerDTO, error) {
	fullName, email, err := validateMember(req.FullName, req.Email)
	if err != nil {
		return nil, err
	}

	passwordHash, err := hashOptionalPassword(req.Password, f.bcryptCost)
	if err != nil {
		return nil, err
	}

	var marketer *models.MarketerUser
	_, err = f.allocator.WithAllocation(ctx, companyID, models.CounterKindMarketer, func(txCtx context.Context, a *Allocation) error {
		existing, err := f.marketerRepo.ByCompanyAndEmail(txCtx, companyID, email)
		if err != nil {
			return NewBusinessError("MARKETER_LOOKUP_FAILED", "Failed to check marketer email", err)
		}
		if existing != nil {
			return NewBusinessError("MARKETER_EMAIL_EXISTS", "A marketer with this email already exists", ErrMemberEmailExists)
		}

		marketer = &models.MarketerUser{
			UUID:                  uuid.New(),
			CompanyID:             companyID,
			FullName:              fullName,
			Email:                 email,
			Phone:                 utils.TrimmedPtr(utils.FromPtr(req.Phone)),
			PasswordHash:          passwordHash,
			CompanySequenceNumber: utils.ToPtr(a.SequenceNumber),
			CompanyUID:            utils.ToPtr(a.FormattedID),
			IsActive:              utils.ToPtr(true),
		}
		if err := f.marketerRepo.Save(txCtx, marketer); err != nil {
			if repository.IsDuplicate(err) {
				return NewBusinessError("MARKETER_CONFLICT", "Marketer conflicts with an existing record", fmt.Errorf("%w: %w", ErrMemberConflict, err))
			}
			return NewBusinessError("MARKETER_CREATION_FAILED", "Failed to create marketer", err)
		}

		return recordAudit(txCtx, f.auditRepo, auditEntry{
			companyID:   &companyID,
			action:      models.AuditActionMarketerRegistered,
			description: fmt.Sprintf("Marketer %s registered", a.FormattedID),
			success:     true,
			metadata:    map[string]any{"marketer_id": marketer.ID, "company_uid": a.FormattedID, "sequence": a.SequenceNumber},
		}, metadata)
	})
	if err != nil {
		errMsg := err.Error()
		_ = recordAudit(ctx, f.auditRepo, auditEntry{
			companyID:   nonZero(companyID),
			action:      models.AuditActionMarketerFailed,
			description: "Marketer registration failed",
			success:     false,
			errMsg:      &errMsg,
		}, metadata)
		f.logger.Warn("Marketer registration failed", zap.Uint("company_id", companyID), zap.Error(err))
		return nil, err
	}

	result := ToMarketerDTO(*marketer)
	return &result, nil
}

func (f *MarketerFlowImpl) Get(ctx context.Context, companyID, marketerID uint) (*dto.MarketerDTO, error) {
	marketer, err := f.marketerRepo.ByCompanyAndID(ctx, companyID, marketerID)
	if err != nil {
		return nil, NewBusinessError("MARKETER_LOOKUP_FAILED", "Failed to lookup marketer", err)
	}
	if marketer == nil {
		return nil, NewBusinessError("MARKETER_NOT_FOUND", "Marketer not found", ErrMarketerNotFound)
	}
	result := ToMarketerDTO(*marketer)
	return &result, nil
}

func (f *MarketerFlowImpl) List(ctx context.Context, companyID uint, req *dto.ListMembersRequest) (*dto.ListMarketersResponse, error) {
	if req == nil {
		req = &dto.ListMembersRequest{}
	}
	page, pageSize, offset, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	filter := models.MarketerUserFilter{CompanyID: companyID}
	total, err := f.marketerRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("MARKETER_LIST_FAILED", "Failed to count marketers", err)
	}
	marketers, err := f.marketerRepo.ByFilter(ctx, filter, "company_sequence_number ASC NULLS LAST, id ASC", pageSize, offset)
	if err != nil {
		return nil, NewBusinessError("MARKETER_LIST_FAILED", "Failed to list marketers", err)
	}

	items := make([]dto.MarketerDTO, 0, len(marketers))
	for _, m := range marketers {
		items = append(items, ToMarketerDTO(*m))
	}
	return &dto.ListMarketersResponse{
		Items:      items,
		Pagination: paginationInfo(total, page, pageSize),
	}, nil
}
