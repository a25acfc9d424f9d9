package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/repository"
	"github.com/amirphl/estate-registry/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ClientFlow registers and lists the clients of one company
type ClientFlow interface {
	Register(ctx context.Context, companyID uint, req *dto.RegisterClientRequest, metadata *ClientMetadata) (*dto.ClientDTO, error)
	Get(ctx context.Context, companyID, clientID uint) (*dto.ClientDTO, error)
	List(ctx context.Context, companyID uint, req *dto.ListMembersRequest) (*dto.ListClientsResponse, error)
}

// ClientFlowImpl implements ClientFlow
type ClientFlowImpl struct {
	clientRepo   repository.ClientUserRepository
	marketerRepo repository.MarketerUserRepository
	auditRepo    repository.AuditLogRepository
	allocator    SequenceAllocator
	bcryptCost   int
	logger       *zap.Logger
}

func NewClientFlow(
	clientRepo repository.ClientUserRepository,
	marketerRepo repository.MarketerUserRepository,
	auditRepo repository.AuditLogRepository,
	allocator SequenceAllocator,
	bcryptCost int,
	logger *zap.Logger,
) ClientFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &ClientFlowImpl{
		clientRepo:   clientRepo,
		marketerRepo: marketerRepo,
		auditRepo:    auditRepo,
		allocator:    allocator,
		bcryptCost:   bcryptCost,
		logger:       logger.Named("client_flow"),
	}
}

// Register creates a client and assigns it the next client number of the company in the same transaction
func (f *ClientFlowImpl) Register(ctx context.Context, companyID uint, req *dto.RegisterClientRequest, metadata *ClientMetadata) (*dto.ClientDTO, error) {
	fullName, email, err := validateMember(req.FullName, req.Email)
	if err != nil {
		return nil, err
	}

	// bcrypt runs before the counter row is locked
	passwordHash, err := hashOptionalPassword(req.Password, f.bcryptCost)
	if err != nil {
		return nil, err
	}

	var client *models.ClientUser
	alloc, err := f.allocator.WithAllocation(ctx, companyID, models.CounterKindClient, func(txCtx context.Context, a *Allocation) error {
		existing, err := f.clientRepo.ByCompanyAndEmail(txCtx, companyID, email)
		if err != nil {
			return NewBusinessError("CLIENT_LOOKUP_FAILED", "Failed to check client email", err)
		}
		if existing != nil {
			return NewBusinessError("CLIENT_EMAIL_EXISTS", "A client with this email already exists", ErrMemberEmailExists)
		}

		if req.MarketerID != nil {
			marketer, err := f.marketerRepo.ByCompanyAndID(txCtx, companyID, *req.MarketerID)
			if err != nil {
				return NewBusinessError("MARKETER_LOOKUP_FAILED", "Failed to lookup marketer", err)
			}
			if marketer == nil {
				return NewBusinessError("MARKETER_NOT_IN_COMPANY", "Marketer does not belong to this company", ErrMarketerOfOtherCompany)
			}
		}

		client = &models.ClientUser{
			UUID:                  uuid.New(),
			CompanyID:             companyID,
			MarketerID:            req.MarketerID,
			FullName:              fullName,
			Email:                 email,
			Phone:                 utils.TrimmedPtr(utils.FromPtr(req.Phone)),
			PasswordHash:          passwordHash,
			CompanySequenceNumber: utils.ToPtr(a.SequenceNumber),
			CompanyUID:            utils.ToPtr(a.FormattedID),
			IsActive:              utils.ToPtr(true),
		}
		if err := f.clientRepo.Save(txCtx, client); err != nil {
			if repository.IsDuplicate(err) {
				return NewBusinessError("CLIENT_CONFLICT", "Client conflicts with an existing record", fmt.Errorf("%w: %w", ErrMemberConflict, err))
			}
			return NewBusinessError("CLIENT_CREATION_FAILED", "Failed to create client", err)
		}

		return recordAudit(txCtx, f.auditRepo, auditEntry{
			companyID:   &companyID,
			action:      models.AuditActionClientRegistered,
			description: fmt.Sprintf("Client %s registered", a.FormattedID),
			success:     true,
			metadata:    map[string]any{"client_id": client.ID, "company_uid": a.FormattedID, "sequence": a.SequenceNumber},
		}, metadata)
	})
	if err != nil {
		errMsg := err.Error()
		_ = recordAudit(ctx, f.auditRepo, auditEntry{
			companyID:   nonZero(companyID),
			action:      models.AuditActionClientFailed,
			description: "Client registration failed",
			success:     false,
			errMsg:      &errMsg,
		}, metadata)
		f.logger.Warn("Client registration failed", zap.Uint("company_id", companyID), zap.Error(err))
		return nil, err
	}

	f.logger.Info("Client registered",
		zap.Uint("company_id", companyID),
		zap.Uint("client_id", client.ID),
		zap.String("company_uid", alloc.FormattedID))

	result := ToClientDTO(*client)
	return &result, nil
}

func (f *ClientFlowImpl) Get(ctx context.Context, companyID, clientID uint) (*dto.ClientDTO, error) {
	client, err := f.clientRepo.ByCompanyAndID(ctx, companyID, clientID)
	if err != nil {
		return nil, NewBusinessError("CLIENT_LOOKUP_FAILED", "Failed to lookup client", err)
	}
	if client == nil {
		return nil, NewBusinessError("CLIENT_NOT_FOUND", "Client not found", ErrClientNotFound)
	}
	result := ToClientDTO(*client)
	return &result, nil
}

func (f *ClientFlowImpl) List(ctx context.Context, companyID uint, req *dto.ListMembersRequest) (*dto.ListClientsResponse, error) {
	if req == nil {
		req = &dto.ListMembersRequest{}
	}
	page, pageSize, offset, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	filter := models.ClientUserFilter{CompanyID: companyID, MarketerID: req.MarketerID}
	total, err := f.clientRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CLIENT_LIST_FAILED", "Failed to count clients", err)
	}
	clients, err := f.clientRepo.ByFilter(ctx, filter, "company_sequence_number ASC NULLS LAST, id ASC", pageSize, offset)
	if err != nil {
		return nil, NewBusinessError("CLIENT_LIST_FAILED", "Failed to list clients", err)
	}

	items := make([]dto.ClientDTO, 0, len(clients))
	for _, c := range clients {
		items = append(items, ToClientDTO(*c))
	}
	return &dto.ListClientsResponse{
		Items:      items,
		Pagination: paginationInfo(total, page, pageSize),
	}, nil
}

// validateMember trims the name and lowercases the email of a new client or marketer
func validateMember(fullName, email string) (string, string, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" {
		return "", "", NewBusinessError("MEMBER_VALIDATION_FAILED", "Full name is required", ErrMemberNameRequired)
	}
	if email == "" {
		return "", "", NewBusinessError("MEMBER_VALIDATION_FAILED", "Email is required", ErrMemberEmailRequired)
	}
	return fullName, email, nil
}

func hashOptionalPassword(password *string, cost int) (*string, error) {
	if password == nil || *password == "" {
		return nil, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(*password), cost)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}
	return utils.ToPtr(string(hashed)), nil
}

func nonZero(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
