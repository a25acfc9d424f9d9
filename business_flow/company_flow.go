package businessflow

import (
	"context"
	"fmt"
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

// CompanyFlow handles tenant lifecycle: onboarding, prefixes, API keys and removal
type CompanyFlow interface {
	Onboard(ctx context.Context, req *dto.OnboardCompanyRequest, metadata *ClientMetadata) (*dto.OnboardCompanyResponse, error)
	OverridePrefix(ctx context.Context, companyID uint, req *dto.OverridePrefixRequest, metadata *ClientMetadata) (*dto.CompanyDTO, error)
	RotateAPIKey(ctx context.Context, companyID uint, metadata *ClientMetadata) (*dto.RotateAPIKeyResponse, error)
	SetActive(ctx context.Context, companyID uint, active bool, metadata *ClientMetadata) (*dto.CompanyDTO, error)
	Remove(ctx context.Context, companyID uint, metadata *ClientMetadata) error
	Get(ctx context.Context, companyID uint) (*dto.CompanyDetailResponse, error)
	List(ctx context.Context, req *dto.ListCompaniesRequest) (*dto.ListCompaniesResponse, error)
	// ResolveTenant maps a route slug to its company, through the tenant cache
	ResolveTenant(ctx context.Context, slug string) (*services.TenantRef, error)
}

// CompanyFlowImpl implements CompanyFlow
type CompanyFlowImpl struct {
	companyRepo  repository.CompanyRepository
	sequenceRepo repository.CompanySequenceRepository
	auditRepo    repository.AuditLogRepository
	tx           repository.Transactor
	tenantCache  services.TenantCache
	bcryptCost   int
	logger       *zap.Logger
}

func NewCompanyFlow(
	companyRepo repository.CompanyRepository,
	sequenceRepo repository.CompanySequenceRepository,
	auditRepo repository.AuditLogRepository,
	tx repository.Transactor,
	tenantCache services.TenantCache,
	bcryptCost int,
	logger *zap.Logger,
) CompanyFlow {
	if tenantCache == nil {
		tenantCache = services.NewTenantCache(nil, "", 0, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &CompanyFlowImpl{
		companyRepo:  companyRepo,
		sequenceRepo: sequenceRepo,
		auditRepo:    auditRepo,
		tx:           tx,
		tenantCache:  tenantCache,
		bcryptCost:   bcryptCost,
		logger:       logger.Named("company_flow"),
	}
}

// Onboard creates a company with a unique slug, a unique identifier prefix, an API key and its counters
func (f *CompanyFlowImpl) Onboard(ctx context.Context, req *dto.OnboardCompanyRequest, metadata *ClientMetadata) (*dto.OnboardCompanyResponse, error) {
	if req == nil || strings.TrimSpace(req.CompanyName) == "" {
		return nil, NewBusinessError("COMPANY_VALIDATION_FAILED", "Company name is required", ErrCompanyNameRequired)
	}
	name := strings.TrimSpace(req.CompanyName)

	var requested string
	if req.UIDPrefix != nil && strings.TrimSpace(*req.UIDPrefix) != "" {
		p, err := NormalizePrefix(*req.UIDPrefix)
		if err != nil {
			return nil, NewBusinessError("COMPANY_VALIDATION_FAILED", "Invalid identifier prefix", err)
		}
		requested = p
	}

	var company *models.Company
	var apiKey string
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		exists, err := f.companyRepo.Exists(txCtx, models.CompanyFilter{Name: &name})
		if err != nil {
			return NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to check company name", err)
		}
		if exists {
			return NewBusinessError("COMPANY_ALREADY_EXISTS", "A company with this name already exists", ErrCompanyAlreadyExists)
		}

		prefix, override, collided, err := f.choosePrefix(txCtx, name, requested)
		if err != nil {
			return err
		}

		base := Slugify(name)
		taken, err := f.companyRepo.SlugsWithBase(txCtx, base)
		if err != nil {
			return NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to check company slug", err)
		}

		companyUUID := uuid.New()
		var hash string
		apiKey, hash, err = f.newAPIKeyFor(companyUUID)
		if err != nil {
			return err
		}

		company = &models.Company{
			UUID:           companyUUID,
			Name:           name,
			Slug:           UniqueSlug(base, taken),
			PrefixOverride: utils.ToPtr(override),
			Email:          utils.TrimmedPtr(utils.FromPtr(req.Email)),
			Phone:          utils.TrimmedPtr(utils.FromPtr(req.Phone)),
			Location:       utils.TrimmedPtr(utils.FromPtr(req.Location)),
			APIKeyHash:     &hash,
			IsActive:       utils.ToPtr(true),
		}
		if !collided {
			company.UIDPrefix = &prefix
		}

		if err := f.companyRepo.Save(txCtx, company); err != nil {
			if repository.IsDuplicate(err) {
				return NewBusinessError("COMPANY_ALREADY_EXISTS", "Company name, slug or prefix already taken", fmt.Errorf("%w: %w", ErrCompanyAlreadyExists, err))
			}
			return NewBusinessError("COMPANY_CREATION_FAILED", "Failed to create company", err)
		}

		if !collided {
			if err := f.companyRepo.ReservePrefix(txCtx, company.ID, prefix, false); err != nil {
				if repository.IsDuplicate(err) {
					return NewBusinessError("PREFIX_TAKEN", "Identifier prefix already taken", fmt.Errorf("%w: %w", ErrPrefixTaken, err))
				}
				return NewBusinessError("COMPANY_CREATION_FAILED", "Failed to reserve company prefix", err)
			}
		}

		// The derived prefix belongs to another company: make it unique with the new id
		if collided {
			disambiguated := DisambiguatedPrefix(prefix, company.ID)
			if err := f.companyRepo.UpdatePrefix(txCtx, company.ID, disambiguated, false); err != nil {
				if repository.IsDuplicate(err) {
					return NewBusinessError("PREFIX_TAKEN", "Identifier prefix already taken", fmt.Errorf("%w: %w", ErrPrefixTaken, err))
				}
				return NewBusinessError("COMPANY_CREATION_FAILED", "Failed to store company prefix", err)
			}
			company.UIDPrefix = &disambiguated
		}

		for _, kind := range models.CounterKinds() {
			if _, err := f.sequenceRepo.Get(txCtx, company.ID, kind); err != nil {
				return NewBusinessError("COMPANY_CREATION_FAILED", "Failed to create sequence counters", err)
			}
		}

		return recordAudit(txCtx, f.auditRepo, auditEntry{
			companyID:   &company.ID,
			action:      models.AuditActionCompanyOnboarded,
			description: fmt.Sprintf("Company %s onboarded with prefix %s", company.Name, company.Prefix()),
			success:     true,
			metadata:    map[string]any{"slug": company.Slug, "prefix": company.Prefix(), "prefix_override": override},
		}, metadata)
	})
	if err != nil {
		f.logger.Warn("Company onboarding failed", zap.String("company_name", name), zap.Error(err))
		return nil, err
	}

	f.logger.Info("Company onboarded",
		zap.Uint("company_id", company.ID),
		zap.String("slug", company.Slug),
		zap.String("prefix", company.Prefix()))

	return &dto.OnboardCompanyResponse{
		Company: ToCompanyDTO(*company),
		APIKey:  apiKey,
	}, nil
}

// choosePrefix returns the prefix to store. collided is set when the derived prefix is held,
// now or before an override, by another company and must be disambiguated once the new id is known.
func (f *CompanyFlowImpl) choosePrefix(ctx context.Context, name, requested string) (prefix string, override, collided bool, err error) {
	if requested != "" {
		held, err := prefixHeldByOther(ctx, f.companyRepo, requested, 0)
		if err != nil {
			return "", false, false, NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to check identifier prefix", err)
		}
		if held {
			return "", false, false, NewBusinessErrorf("PREFIX_TAKEN", "Identifier prefix %s is already used", ErrPrefixTaken, requested)
		}
		return requested, true, false, nil
	}

	derived := DerivePrefix(name)
	held, err := prefixHeldByOther(ctx, f.companyRepo, derived, 0)
	if err != nil {
		return "", false, false, NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to check identifier prefix", err)
	}
	return derived, false, held, nil
}

// prefixHeldByOther reports whether a company other than companyID holds prefix or held it before.
// Retired prefixes stay taken because identifiers issued under them still exist.
func prefixHeldByOther(ctx context.Context, repo repository.CompanyRepository, prefix string, companyID uint) (bool, error) {
	holder, err := repo.PrefixHolder(ctx, prefix)
	if err != nil {
		return false, err
	}
	return holder != 0 && holder != companyID, nil
}

// OverridePrefix replaces the identifier prefix. Identifiers already issued keep their old prefix.
func (f *CompanyFlowImpl) OverridePrefix(ctx context.Context, companyID uint, req *dto.OverridePrefixRequest, metadata *ClientMetadata) (*dto.CompanyDTO, error) {
	if req == nil {
		return nil, NewBusinessError("COMPANY_VALIDATION_FAILED", "Invalid identifier prefix", ErrPrefixInvalid)
	}
	prefix, err := NormalizePrefix(req.UIDPrefix)
	if err != nil {
		return nil, NewBusinessError("COMPANY_VALIDATION_FAILED", "Invalid identifier prefix", err)
	}

	var company *models.Company
	var previous string
	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		company, err = f.getCompany(txCtx, companyID)
		if err != nil {
			return err
		}
		previous = CompanyPrefix(company)

		held, err := prefixHeldByOther(txCtx, f.companyRepo, prefix, company.ID)
		if err != nil {
			return NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to check identifier prefix", err)
		}
		if held {
			return NewBusinessErrorf("PREFIX_TAKEN", "Identifier prefix %s is already used", ErrPrefixTaken, prefix)
		}

		if err := f.companyRepo.UpdatePrefix(txCtx, company.ID, prefix, true); err != nil {
			if repository.IsDuplicate(err) {
				return NewBusinessError("PREFIX_TAKEN", "Identifier prefix already taken", fmt.Errorf("%w: %w", ErrPrefixTaken, err))
			}
			return NewBusinessError("PREFIX_UPDATE_FAILED", "Failed to update identifier prefix", err)
		}
		company.UIDPrefix = &prefix
		company.PrefixOverride = utils.ToPtr(true)

		return recordAudit(txCtx, f.auditRepo, auditEntry{
			companyID:   &company.ID,
			action:      models.AuditActionPrefixOverridden,
			description: fmt.Sprintf("Prefix changed from %s to %s", previous, prefix),
			success:     true,
			metadata:    map[string]any{"previous": previous, "prefix": prefix},
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	f.tenantCache.Invalidate(ctx, company.Slug)
	f.logger.Info("Company prefix overridden",
		zap.Uint("company_id", company.ID),
		zap.String("previous", previous),
		zap.String("prefix", prefix))

	result := ToCompanyDTO(*company)
	return &result, nil
}

// RotateAPIKey issues a new API key. The previous key stops working immediately.
func (f *CompanyFlowImpl) RotateAPIKey(ctx context.Context, companyID uint, metadata *ClientMetadata) (*dto.RotateAPIKeyResponse, error) {
	var company *models.Company
	var apiKey string
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		company, err = f.getCompany(txCtx, companyID)
		if err != nil {
			return err
		}

		var hash string
		apiKey, hash, err = f.newAPIKeyFor(company.UUID)
		if err != nil {
			return err
		}
		if err := f.companyRepo.UpdateAPIKeyHash(txCtx, company.ID, hash); err != nil {
			return NewBusinessError("API_KEY_ROTATION_FAILED", "Failed to rotate API key", err)
		}
		company.APIKeyHash = &hash

		return recordAudit(txCtx, f.auditRepo, auditEntry{
			companyID:   &company.ID,
			action:      models.AuditActionAPIKeyRotated,
			description: "API key rotated",
			success:     true,
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	return &dto.RotateAPIKeyResponse{
		Company: ToCompanyDTO(*company),
		APIKey:  apiKey,
	}, nil
}

// SetActive toggles the company. Allocation for an inactive company fails with an invalid tenant error.
func (f *CompanyFlowImpl) SetActive(ctx context.Context, companyID uint, active bool, metadata *ClientMetadata) (*dto.CompanyDTO, error) {
	var company *models.Company
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		company, err = f.getCompany(txCtx, companyID)
		if err != nil {
			return err
		}
		if err := f.companyRepo.SetActive(txCtx, company.ID, active); err != nil {
			return NewBusinessError("COMPANY_UPDATE_FAILED", "Failed to update company", err)
		}
		company.IsActive = utils.ToPtr(active)

		action := models.AuditActionCompanyDeactivated
		if active {
			action = models.AuditActionCompanyActivated
		}
		return recordAudit(txCtx, f.auditRepo, auditEntry{
			companyID:   &company.ID,
			action:      action,
			description: fmt.Sprintf("Company %s is_active=%t", company.Name, active),
			success:     true,
		}, metadata)
	})
	if err != nil {
		return nil, err
	}

	f.tenantCache.Invalidate(ctx, company.Slug)
	result := ToCompanyDTO(*company)
	return &result, nil
}

// Remove deletes the company together with its counters, clients and marketers
func (f *CompanyFlowImpl) Remove(ctx context.Context, companyID uint, metadata *ClientMetadata) error {
	var company *models.Company
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		company, err = f.getCompany(txCtx, companyID)
		if err != nil {
			return err
		}
		if err := f.companyRepo.Delete(txCtx, company.ID); err != nil {
			return NewBusinessError("COMPANY_REMOVAL_FAILED", "Failed to remove company", err)
		}
		return recordAudit(txCtx, f.auditRepo, auditEntry{
			companyID:   &company.ID,
			action:      models.AuditActionCompanyRemoved,
			description: fmt.Sprintf("Company %s removed", company.Name),
			success:     true,
			metadata:    map[string]any{"slug": company.Slug, "prefix": CompanyPrefix(company)},
		}, metadata)
	})
	if err != nil {
		return err
	}

	f.tenantCache.Invalidate(ctx, company.Slug)
	f.logger.Info("Company removed", zap.Uint("company_id", company.ID), zap.String("slug", company.Slug))
	return nil
}

// Get returns the company with the current value of each counter and the next identifier it would issue
func (f *CompanyFlowImpl) Get(ctx context.Context, companyID uint) (*dto.CompanyDetailResponse, error) {
	company, err := f.getCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	rows, err := f.sequenceRepo.ByCompany(ctx, company.ID)
	if err != nil {
		return nil, NewBusinessError("SEQUENCE_LOOKUP_FAILED", "Failed to read sequence counters", err)
	}
	current := make(map[models.CounterKind]int64, len(rows))
	for _, row := range rows {
		current[row.Kind] = row.LastValue
	}

	prefix := CompanyPrefix(company)
	sequences := make([]dto.CompanySequenceDTO, 0, len(models.CounterKinds()))
	for _, kind := range models.CounterKinds() {
		tag, _ := kind.Tag()
		next, err := FormatUID(prefix, kind, current[kind]+1)
		if err != nil {
			return nil, NewBusinessError("UNKNOWN_COUNTER_KIND", "Unknown counter kind", err)
		}
		sequences = append(sequences, dto.CompanySequenceDTO{
			Kind:      kind.String(),
			Tag:       tag,
			LastValue: current[kind],
			NextUID:   next,
		})
	}

	return &dto.CompanyDetailResponse{
		Company:   ToCompanyDTO(*company),
		Sequences: sequences,
	}, nil
}

func (f *CompanyFlowImpl) List(ctx context.Context, req *dto.ListCompaniesRequest) (*dto.ListCompaniesResponse, error) {
	if req == nil {
		req = &dto.ListCompaniesRequest{}
	}
	page, pageSize, offset, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	filter := models.CompanyFilter{IsActive: req.IsActive}
	total, err := f.companyRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LIST_FAILED", "Failed to count companies", err)
	}
	companies, err := f.companyRepo.ByFilter(ctx, filter, "id ASC", pageSize, offset)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LIST_FAILED", "Failed to list companies", err)
	}

	items := make([]dto.CompanyDTO, 0, len(companies))
	for _, c := range companies {
		items = append(items, ToCompanyDTO(*c))
	}
	return &dto.ListCompaniesResponse{
		Items:      items,
		Pagination: paginationInfo(total, page, pageSize),
	}, nil
}

func (f *CompanyFlowImpl) ResolveTenant(ctx context.Context, slug string) (*services.TenantRef, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, NewBusinessError("COMPANY_NOT_FOUND", "Company not found", ErrCompanyNotFound)
	}
	if ref, ok := f.tenantCache.Get(ctx, slug); ok {
		return ref, nil
	}

	company, err := f.companyRepo.BySlug(ctx, slug)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to lookup company", err)
	}
	if company == nil {
		return nil, NewBusinessError("COMPANY_NOT_FOUND", "Company not found", ErrCompanyNotFound)
	}

	ref := &services.TenantRef{
		ID:     company.ID,
		UUID:   company.UUID.String(),
		Slug:   company.Slug,
		Prefix: CompanyPrefix(company),
		Active: company.Active(),
	}
	f.tenantCache.Set(ctx, ref)
	return ref, nil
}

func (f *CompanyFlowImpl) getCompany(ctx context.Context, companyID uint) (*models.Company, error) {
	return getCompany(ctx, f.companyRepo, companyID)
}

// getCompany loads a company or fails with ErrCompanyNotFound
func getCompany(ctx context.Context, companyRepo repository.CompanyRepository, companyID uint) (*models.Company, error) {
	if companyID == 0 {
		return nil, NewBusinessError("COMPANY_NOT_FOUND", "Company not found", ErrCompanyNotFound)
	}
	company, err := companyRepo.ByID(ctx, companyID)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LOOKUP_FAILED", "Failed to lookup company", err)
	}
	if company == nil {
		return nil, NewBusinessErrorf("COMPANY_NOT_FOUND", "Company %d not found", ErrCompanyNotFound, companyID)
	}
	return company, nil
}

func (f *CompanyFlowImpl) newAPIKeyFor(companyUUID uuid.UUID) (key, hash string, err error) {
	key, hash, err = GenerateAPIKey(companyUUID, f.bcryptCost)
	if err != nil {
		return "", "", NewBusinessError("API_KEY_GENERATION_FAILED", "Failed to generate API key", err)
	}
	return key, hash, nil
}
