package businessflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/repository"
	"github.com/amirphl/estate-registry/utils"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Audit statuses of one (company, kind) counter
const (
	SequenceStatusOK            = "ok"
	SequenceStatusNeedsBackfill = "needs_backfill"
	SequenceStatusInconsistent  = "inconsistent"
)

// SequenceAdminFlow repairs and inspects per-company counters
type SequenceAdminFlow interface {
	// Backfill raises counters to the highest number already stored. Counters never move down.
	Backfill(ctx context.Context, req *dto.BackfillRequest, metadata *ClientMetadata) (*dto.BackfillResponse, error)
	// RepairUIDs numbers legacy rows and fills missing formatted identifiers
	RepairUIDs(ctx context.Context, req *dto.RepairUIDsRequest, metadata *ClientMetadata) (*dto.RepairUIDsResponse, error)
	Audit(ctx context.Context, req *dto.SequenceAuditRequest) (*dto.SequenceAuditResponse, error)
	ExportAudit(ctx context.Context, req *dto.SequenceAuditRequest) (filename string, data []byte, err error)
}

// SequenceAdminFlowImpl implements SequenceAdminFlow
type SequenceAdminFlowImpl struct {
	companyRepo  repository.CompanyRepository
	sequenceRepo repository.CompanySequenceRepository
	auditRepo    repository.AuditLogRepository
	members      map[models.CounterKind]repository.SequencedMemberRepository
	allocator    SequenceAllocator
	tx           repository.Transactor
	logger       *zap.Logger
}

func NewSequenceAdminFlow(
	companyRepo repository.CompanyRepository,
	sequenceRepo repository.CompanySequenceRepository,
	auditRepo repository.AuditLogRepository,
	allocator SequenceAllocator,
	tx repository.Transactor,
	logger *zap.Logger,
	members ...repository.SequencedMemberRepository,
) SequenceAdminFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	byKind := make(map[models.CounterKind]repository.SequencedMemberRepository, len(members))
	for _, m := range members {
		byKind[m.Kind()] = m
	}
	return &SequenceAdminFlowImpl{
		companyRepo:  companyRepo,
		sequenceRepo: sequenceRepo,
		auditRepo:    auditRepo,
		members:      byKind,
		allocator:    allocator,
		tx:           tx,
		logger:       logger.Named("sequence_admin"),
	}
}

func (f *SequenceAdminFlowImpl) Backfill(ctx context.Context, req *dto.BackfillRequest, metadata *ClientMetadata) (*dto.BackfillResponse, error) {
	if req == nil {
		req = &dto.BackfillRequest{}
	}
	kinds, err := f.selectKinds(req.Kinds)
	if err != nil {
		return nil, err
	}
	companies, err := f.selectCompanies(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}

	resp := &dto.BackfillResponse{Companies: make([]dto.BackfillCompanyResult, 0, len(companies))}
	for _, company := range companies {
		result := dto.BackfillCompanyResult{CompanyID: company.ID, CompanyName: company.Name}

		err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			result.Kinds = result.Kinds[:0]
			for _, kind := range kinds {
				highest, err := f.members[kind].MaxSequenceNumber(txCtx, company.ID)
				if err != nil {
					return NewBusinessError("BACKFILL_FAILED", "Failed to read highest sequence number", err)
				}
				before, after, err := f.sequenceRepo.RaiseTo(txCtx, company.ID, kind, highest)
				if err != nil {
					return NewBusinessError("BACKFILL_FAILED", "Failed to raise sequence counter", err)
				}
				result.Kinds = append(result.Kinds, dto.BackfillKindResult{
					Kind:        kind.String(),
					Before:      before,
					ObservedMax: highest,
					After:       after,
					Raised:      after > before,
				})
			}

			raised := make(map[string]any)
			for _, k := range result.Kinds {
				if k.Raised {
					raised[k.Kind] = map[string]int64{"before": k.Before, "after": k.After}
				}
			}
			if len(raised) == 0 {
				return nil
			}
			return recordAudit(txCtx, f.auditRepo, auditEntry{
				companyID:   &company.ID,
				action:      models.AuditActionSequenceBackfilled,
				description: fmt.Sprintf("Backfilled %d counter(s) of %s", len(raised), company.Name),
				success:     true,
				metadata:    raised,
			}, metadata)
		})
		if err != nil {
			f.logger.Error("Backfill failed", zap.Uint("company_id", company.ID), zap.Error(err))
			return nil, err
		}

		for _, k := range result.Kinds {
			if k.Raised {
				resp.Raised++
				counterBackfills.WithLabelValues(k.Kind).Inc()
				f.logger.Info("Counter raised",
					zap.Uint("company_id", company.ID),
					zap.String("kind", k.Kind),
					zap.Int64("before", k.Before),
					zap.Int64("after", k.After))
			}
		}
		resp.Companies = append(resp.Companies, result)
	}

	return resp, nil
}

func (f *SequenceAdminFlowImpl) RepairUIDs(ctx context.Context, req *dto.RepairUIDsRequest, metadata *ClientMetadata) (*dto.RepairUIDsResponse, error) {
	if req == nil {
		req = &dto.RepairUIDsRequest{}
	}
	companies, err := f.selectCompanies(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	kinds, err := f.selectKinds(nil)
	if err != nil {
		return nil, err
	}

	resp := &dto.RepairUIDsResponse{Companies: make([]dto.RepairCompanyResult, 0, len(companies))}
	for _, company := range companies {
		var result dto.RepairCompanyResult
		err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			var err error
			result, err = f.repairCompany(txCtx, company, kinds, metadata)
			return err
		})
		if err != nil {
			f.logger.Error("UID repair failed", zap.Uint("company_id", company.ID), zap.Error(err))
			return nil, err
		}
		resp.Companies = append(resp.Companies, result)
	}
	return resp, nil
}

// repairCompany runs inside the transaction carried by ctx
func (f *SequenceAdminFlowImpl) repairCompany(ctx context.Context, company *models.Company, kinds []models.CounterKind, metadata *ClientMetadata) (dto.RepairCompanyResult, error) {
	result := dto.RepairCompanyResult{CompanyID: company.ID, CompanyName: company.Name}

	prefix, err := f.ensurePrefix(ctx, company)
	if err != nil {
		return result, err
	}
	result.Prefix = prefix

	total := 0
	for _, kind := range kinds {
		repo := f.members[kind]
		kr := dto.RepairKindResult{Kind: kind.String()}

		// Numbers already stored must never be handed out again
		highest, err := repo.MaxSequenceNumber(ctx, company.ID)
		if err != nil {
			return result, NewBusinessError("UID_REPAIR_FAILED", "Failed to read highest sequence number", err)
		}
		if _, _, err := f.sequenceRepo.RaiseTo(ctx, company.ID, kind, highest); err != nil {
			return result, NewBusinessError("UID_REPAIR_FAILED", "Failed to raise sequence counter", err)
		}

		unnumbered, err := repo.ListUnnumbered(ctx, company.ID)
		if err != nil {
			return result, NewBusinessError("UID_REPAIR_FAILED", "Failed to list unnumbered rows", err)
		}
		for _, ref := range unnumbered {
			alloc, err := f.allocator.Allocate(ctx, company.ID, kind)
			if err != nil {
				return result, err
			}
			if err := repo.AssignSequence(ctx, ref.ID, alloc.SequenceNumber, alloc.FormattedID); err != nil {
				return result, NewBusinessError("UID_REPAIR_FAILED", "Failed to assign sequence number", err)
			}
			kr.Numbered++
		}

		missing, err := repo.ListMissingUID(ctx, company.ID)
		if err != nil {
			return result, NewBusinessError("UID_REPAIR_FAILED", "Failed to list rows without identifier", err)
		}
		for _, ref := range missing {
			if ref.SequenceNumber == nil {
				continue
			}
			uid, err := f.freeUID(ctx, repo, company, prefix, kind, ref)
			if err != nil {
				return result, err
			}
			if err := repo.AssignUID(ctx, ref.ID, uid); err != nil {
				return result, NewBusinessError("UID_REPAIR_FAILED", "Failed to assign identifier", err)
			}
			kr.UIDsAssigned++
		}

		total += kr.Numbered + kr.UIDsAssigned
		result.Kinds = append(result.Kinds, kr)
	}

	if total == 0 {
		return result, nil
	}
	details := make(map[string]any, len(result.Kinds))
	for _, kr := range result.Kinds {
		details[kr.Kind] = map[string]int{"numbered": kr.Numbered, "uids_assigned": kr.UIDsAssigned}
	}
	err = recordAudit(ctx, f.auditRepo, auditEntry{
		companyID:   &company.ID,
		action:      models.AuditActionUIDsRepaired,
		description: fmt.Sprintf("Repaired %d identifier(s) of %s", total, company.Name),
		success:     true,
		metadata:    details,
	}, metadata)
	return result, err
}

// ensurePrefix stores a prefix for companies created before prefixes were persisted
func (f *SequenceAdminFlowImpl) ensurePrefix(ctx context.Context, company *models.Company) (string, error) {
	if p := company.Prefix(); p != "" {
		return p, nil
	}

	prefix := DerivePrefix(company.Name)
	held, err := prefixHeldByOther(ctx, f.companyRepo, prefix, company.ID)
	if err != nil {
		return "", NewBusinessError("UID_REPAIR_FAILED", "Failed to check identifier prefix", err)
	}
	if held {
		prefix = DisambiguatedPrefix(prefix, company.ID)
	}
	if err := f.companyRepo.UpdatePrefix(ctx, company.ID, prefix, false); err != nil {
		return "", NewBusinessError("UID_REPAIR_FAILED", "Failed to store identifier prefix", err)
	}
	company.UIDPrefix = &prefix
	return prefix, nil
}

// freeUID formats the identifier of ref, switching to the disambiguated prefix when another row holds it
func (f *SequenceAdminFlowImpl) freeUID(ctx context.Context, repo repository.SequencedMemberRepository, company *models.Company, prefix string, kind models.CounterKind, ref models.SequencedRef) (string, error) {
	uid, err := FormatUID(prefix, kind, *ref.SequenceNumber)
	if err != nil {
		return "", NewBusinessError("UNKNOWN_COUNTER_KIND", "Unknown counter kind", err)
	}
	taken, err := repo.UIDTaken(ctx, uid, ref.ID)
	if err != nil {
		return "", NewBusinessError("UID_REPAIR_FAILED", "Failed to check identifier", err)
	}
	if !taken {
		return uid, nil
	}

	disambiguated := DisambiguatedPrefix(prefix, company.ID)
	uid, err = FormatUID(disambiguated, kind, *ref.SequenceNumber)
	if err != nil {
		return "", NewBusinessError("UNKNOWN_COUNTER_KIND", "Unknown counter kind", err)
	}
	if err := f.companyRepo.ReservePrefix(ctx, company.ID, disambiguated, true); err != nil {
		if repository.IsDuplicate(err) {
			return "", NewBusinessErrorf("PREFIX_TAKEN", "Identifier prefix %s is already used", ErrPrefixTaken, disambiguated)
		}
		return "", NewBusinessError("UID_REPAIR_FAILED", "Failed to reserve identifier prefix", err)
	}
	f.logger.Warn("Identifier collision, using disambiguated prefix",
		zap.Uint("company_id", company.ID),
		zap.Uint("row_id", ref.ID),
		zap.String("uid", uid))
	return uid, nil
}

func (f *SequenceAdminFlowImpl) Audit(ctx context.Context, req *dto.SequenceAuditRequest) (*dto.SequenceAuditResponse, error) {
	if req == nil {
		req = &dto.SequenceAuditRequest{}
	}
	companies, err := f.selectCompanies(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	kinds, err := f.selectKinds(nil)
	if err != nil {
		return nil, err
	}

	resp := &dto.SequenceAuditResponse{Healthy: true}
	for _, company := range companies {
		counters, err := f.sequenceRepo.ByCompany(ctx, company.ID)
		if err != nil {
			return nil, NewBusinessError("SEQUENCE_AUDIT_FAILED", "Failed to read sequence counters", err)
		}
		current := make(map[models.CounterKind]int64, len(counters))
		for _, c := range counters {
			current[c.Kind] = c.LastValue
		}

		for _, kind := range kinds {
			stats, err := f.members[kind].SequenceStats(ctx, company.ID)
			if err != nil {
				return nil, NewBusinessError("SEQUENCE_AUDIT_FAILED", "Failed to compute sequence stats", err)
			}
			item := dto.SequenceAuditItem{
				CompanyID:      company.ID,
				CompanyName:    company.Name,
				Prefix:         CompanyPrefix(company),
				Kind:           kind.String(),
				CounterValue:   current[kind],
				MaxSequence:    stats.MaxSequence,
				EntityCount:    stats.EntityCount,
				MissingUIDs:    stats.MissingUIDs,
				UnnumberedRows: stats.UnnumberedRows,
				CounterLag:     max(stats.MaxSequence-current[kind], 0),
				Gaps:           max(stats.MaxSequence-stats.NumberedCount, 0),
				Status:         sequenceStatus(current[kind], stats),
			}
			if item.Status != SequenceStatusOK {
				resp.Healthy = false
			}
			resp.Items = append(resp.Items, item)
		}
	}
	return resp, nil
}

// sequenceStatus reports needs_backfill before inconsistent: a lagging counter makes the next allocation collide
func sequenceStatus(counter int64, stats *models.SequenceStats) string {
	switch {
	case counter < stats.MaxSequence:
		return SequenceStatusNeedsBackfill
	case stats.MissingUIDs > 0 || stats.UnnumberedRows > 0:
		return SequenceStatusInconsistent
	default:
		return SequenceStatusOK
	}
}

func (f *SequenceAdminFlowImpl) ExportAudit(ctx context.Context, req *dto.SequenceAuditRequest) (string, []byte, error) {
	report, err := f.Audit(ctx, req)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	header := []string{"company_id", "company_name", "prefix", "counter_value", "max_sequence", "entity_count", "missing_uids", "unnumbered_rows", "counter_lag", "gaps", "status"}
	rowsByKind := make(map[string][]dto.SequenceAuditItem)
	for _, item := range report.Items {
		rowsByKind[item.Kind] = append(rowsByKind[item.Kind], item)
	}

	for i, kind := range models.CounterKinds() {
		name := truncateSheetName(kind.String())
		if i == 0 {
			if err := xl.SetSheetName(xl.GetSheetName(0), name); err != nil {
				return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to name sheet", err)
			}
		} else if _, err := xl.NewSheet(name); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to create sheet", err)
		}
		_ = xl.SetSheetRow(name, "A1", &header)

		for ri, item := range rowsByKind[kind.String()] {
			record := []any{
				item.CompanyID,
				item.CompanyName,
				item.Prefix,
				item.CounterValue,
				item.MaxSequence,
				item.EntityCount,
				item.MissingUIDs,
				item.UnnumberedRows,
				item.CounterLag,
				item.Gaps,
				item.Status,
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
			_ = xl.SetSheetRow(name, cellRef, &record)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := "sequence_audit_" + strconv.FormatInt(utils.UTCNow().Unix(), 10) + ".xlsx"
	return filename, buf.Bytes(), nil
}

func (f *SequenceAdminFlowImpl) selectCompanies(ctx context.Context, companyID *uint) ([]*models.Company, error) {
	if companyID != nil {
		company, err := getCompany(ctx, f.companyRepo, *companyID)
		if err != nil {
			return nil, err
		}
		return []*models.Company{company}, nil
	}

	companies, err := f.companyRepo.ByFilter(ctx, models.CompanyFilter{}, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LIST_FAILED", "Failed to list companies", err)
	}
	return companies, nil
}

// selectKinds validates requested kinds; nil or empty selects every kind with a registered repository
func (f *SequenceAdminFlowImpl) selectKinds(requested []string) ([]models.CounterKind, error) {
	if len(requested) == 0 {
		kinds := make([]models.CounterKind, 0, len(f.members))
		for _, k := range models.CounterKinds() {
			if _, ok := f.members[k]; ok {
				kinds = append(kinds, k)
			}
		}
		return kinds, nil
	}

	kinds := make([]models.CounterKind, 0, len(requested))
	seen := make(map[models.CounterKind]bool, len(requested))
	for _, raw := range requested {
		kind := models.CounterKind(raw)
		if _, ok := f.members[kind]; !ok || !kind.IsValid() {
			return nil, NewBusinessError("UNKNOWN_COUNTER_KIND", "Unknown counter kind", fmt.Errorf("%w: %q", ErrUnknownCounterKind, raw))
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

func truncateSheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	if name == "" {
		return "Sheet"
	}
	return name
}
