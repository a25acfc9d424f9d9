package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompanySequenceRepositoryImpl implements CompanySequenceRepository
type CompanySequenceRepositoryImpl struct {
	*BaseRepository[models.CompanySequence, models.CompanySequenceFilter]
}

// NewCompanySequenceRepository creates a new sequence repository
func NewCompanySequenceRepository(db *gorm.DB) CompanySequenceRepository {
	return &CompanySequenceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CompanySequence, models.CompanySequenceFilter](db, applyCompanySequenceFilter),
	}
}

func applyCompanySequenceFilter(db *gorm.DB, filter models.CompanySequenceFilter) *gorm.DB {
	if filter.CompanyID != nil {
		db = db.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.Kind != nil {
		db = db.Where("kind = ?", *filter.Kind)
	}
	return db
}

// ensure inserts the zero row for (companyID, kind) unless it already exists
func (r *CompanySequenceRepositoryImpl) ensure(db *gorm.DB, companyID uint, kind models.CounterKind) error {
	now := utils.UTCNow()
	row := models.CompanySequence{
		CompanyID: companyID,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "kind"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to create sequence for company %d (%s): %w", companyID, kind, translateLockError(err))
	}
	return nil
}

func (r *CompanySequenceRepositoryImpl) load(db *gorm.DB, companyID uint, kind models.CounterKind) (*models.CompanySequence, error) {
	var seq models.CompanySequence
	err := db.Where("company_id = ? AND kind = ?", companyID, kind).First(&seq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sequence for company %d (%s) vanished after create: %w", companyID, kind, err)
		}
		return nil, fmt.Errorf("failed to load sequence for company %d (%s): %w", companyID, kind, translateLockError(err))
	}
	return &seq, nil
}

// LockForUpdate returns the counter row locked with SELECT ... FOR UPDATE.
// Must run inside a transaction or the lock is released immediately.
func (r *CompanySequenceRepositoryImpl) LockForUpdate(ctx context.Context, companyID uint, kind models.CounterKind) (*models.CompanySequence, error) {
	db := r.getDB(ctx)
	if err := r.ensure(db, companyID, kind); err != nil {
		return nil, err
	}
	return r.load(db.Clauses(clause.Locking{Strength: "UPDATE"}), companyID, kind)
}

// Get returns the counter row without locking it
func (r *CompanySequenceRepositoryImpl) Get(ctx context.Context, companyID uint, kind models.CounterKind) (*models.CompanySequence, error) {
	db := r.getDB(ctx)
	if err := r.ensure(db, companyID, kind); err != nil {
		return nil, err
	}
	return r.load(db, companyID, kind)
}

// CompareAndSwap writes next only when the row still holds expected
func (r *CompanySequenceRepositoryImpl) CompareAndSwap(ctx context.Context, sequenceID uint, expected, next int64) error {
	db := r.getDB(ctx)

	result := db.Model(&models.CompanySequence{}).
		Where("id = ? AND last_value = ?", sequenceID, expected).
		Updates(map[string]any{
			"last_value": next,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to advance sequence %d: %w", sequenceID, translateLockError(result.Error))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("sequence %d no longer at %d: %w", sequenceID, expected, ErrConcurrentUpdate)
	}
	return nil
}

// RaiseTo moves last_value up to floor. A counter already at or above floor is left untouched.
func (r *CompanySequenceRepositoryImpl) RaiseTo(ctx context.Context, companyID uint, kind models.CounterKind, floor int64) (int64, int64, error) {
	seq, err := r.LockForUpdate(ctx, companyID, kind)
	if err != nil {
		return 0, 0, err
	}
	before := seq.LastValue
	if floor <= before {
		return before, before, nil
	}

	db := r.getDB(ctx)
	result := db.Model(&models.CompanySequence{}).
		Where("id = ? AND last_value < ?", seq.ID, floor).
		Updates(map[string]any{
			"last_value": floor,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return 0, 0, fmt.Errorf("failed to raise sequence %d: %w", seq.ID, translateLockError(result.Error))
	}
	if result.RowsAffected == 0 {
		return 0, 0, fmt.Errorf("sequence %d moved while raising: %w", seq.ID, ErrConcurrentUpdate)
	}
	return before, floor, nil
}

// ByCompany lists every counter of a company ordered by kind
func (r *CompanySequenceRepositoryImpl) ByCompany(ctx context.Context, companyID uint) ([]*models.CompanySequence, error) {
	db := r.getDB(ctx)

	var seqs []*models.CompanySequence
	if err := db.Where("company_id = ?", companyID).Order("kind ASC").Find(&seqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sequences for company %d: %w", companyID, err)
	}
	return seqs, nil
}

// SetLockTimeout bounds how long the current transaction waits for row locks. Outside a transaction it is a no-op.
func (r *CompanySequenceRepositoryImpl) SetLockTimeout(ctx context.Context, timeoutMillis int64) error {
	tx, ok := ctx.Value(TxContextKey).(*gorm.DB)
	if !ok || tx == nil || timeoutMillis <= 0 {
		return nil
	}
	// SET LOCAL does not accept bind parameters
	if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeoutMillis)).Error; err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}
	return nil
}
