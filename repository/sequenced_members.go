package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/utils"
	"gorm.io/gorm"
)

// sequencedMembers implements SequencedMemberRepository for any table carrying
// company_id, company_sequence_number and company_uid columns
type sequencedMembers struct {
	db    *gorm.DB
	table string
	kind  models.CounterKind
}

func newSequencedMembers(db *gorm.DB, table string, kind models.CounterKind) *sequencedMembers {
	return &sequencedMembers{db: db, table: table, kind: kind}
}

func (s *sequencedMembers) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, s.db).Table(s.table)
}

func (s *sequencedMembers) Kind() models.CounterKind {
	return s.kind
}

// MaxSequenceNumber returns the highest number handed out inside the company, 0 when none
func (s *sequencedMembers) MaxSequenceNumber(ctx context.Context, companyID uint) (int64, error) {
	var highest int64
	err := s.conn(ctx).
		Where("company_id = ?", companyID).
		Select("COALESCE(MAX(company_sequence_number), 0)").
		Scan(&highest).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read max sequence of %s for company %d: %w", s.table, companyID, err)
	}
	return highest, nil
}

type sequenceStatsRow struct {
	EntityCount    int64 `gorm:"column:entity_count"`
	NumberedCount  int64 `gorm:"column:numbered_count"`
	MaxSequence    int64 `gorm:"column:max_sequence"`
	MissingUIDs    int64 `gorm:"column:missing_uids"`
	UnnumberedRows int64 `gorm:"column:unnumbered_rows"`
}

func (s *sequencedMembers) SequenceStats(ctx context.Context, companyID uint) (*models.SequenceStats, error) {
	var row sequenceStatsRow
	err := s.conn(ctx).
		Select(`COUNT(*) AS entity_count,
			COUNT(company_sequence_number) AS numbered_count,
			COALESCE(MAX(company_sequence_number), 0) AS max_sequence,
			COUNT(*) FILTER (WHERE company_sequence_number IS NOT NULL AND company_uid IS NULL) AS missing_uids,
			COUNT(*) FILTER (WHERE company_sequence_number IS NULL) AS unnumbered_rows`).
		Where("company_id = ?", companyID).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute sequence stats of %s for company %d: %w", s.table, companyID, err)
	}
	return &models.SequenceStats{
		CompanyID:      companyID,
		Kind:           s.kind,
		EntityCount:    row.EntityCount,
		NumberedCount:  row.NumberedCount,
		MaxSequence:    row.MaxSequence,
		MissingUIDs:    row.MissingUIDs,
		UnnumberedRows: row.UnnumberedRows,
	}, nil
}

// ListUnnumbered returns rows without a sequence number, oldest first
func (s *sequencedMembers) ListUnnumbered(ctx context.Context, companyID uint) ([]models.SequencedRef, error) {
	var refs []models.SequencedRef
	err := s.conn(ctx).
		Select("id, company_sequence_number AS sequence_number").
		Where("company_id = ? AND company_sequence_number IS NULL", companyID).
		Order("id ASC").
		Scan(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unnumbered %s for company %d: %w", s.table, companyID, err)
	}
	return refs, nil
}

// ListMissingUID returns numbered rows lacking a formatted identifier, in number order
func (s *sequencedMembers) ListMissingUID(ctx context.Context, companyID uint) ([]models.SequencedRef, error) {
	var refs []models.SequencedRef
	err := s.conn(ctx).
		Select("id, company_sequence_number AS sequence_number").
		Where("company_id = ? AND company_sequence_number IS NOT NULL AND company_uid IS NULL", companyID).
		Order("company_sequence_number ASC").
		Scan(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s without uid for company %d: %w", s.table, companyID, err)
	}
	return refs, nil
}

func (s *sequencedMembers) AssignSequence(ctx context.Context, id uint, sequenceNumber int64, uid string) error {
	err := s.conn(ctx).
		Where("id = ? AND company_sequence_number IS NULL", id).
		Updates(map[string]any{
			"company_sequence_number": sequenceNumber,
			"company_uid":             uid,
			"updated_at":              utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to assign sequence to %s %d: %w", s.table, id, translateError(err))
	}
	return nil
}

func (s *sequencedMembers) AssignUID(ctx context.Context, id uint, uid string) error {
	err := s.conn(ctx).
		Where("id = ? AND company_uid IS NULL", id).
		Updates(map[string]any{
			"company_uid": uid,
			"updated_at":  utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to assign uid to %s %d: %w", s.table, id, translateError(err))
	}
	return nil
}

// UIDTaken reports whether another row already holds uid
func (s *sequencedMembers) UIDTaken(ctx context.Context, uid string, exceptID uint) (bool, error) {
	var count int64
	err := s.conn(ctx).
		Where("company_uid = ? AND id <> ?", uid, exceptID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check uid %s in %s: %w", uid, s.table, err)
	}
	return count > 0, nil
}
