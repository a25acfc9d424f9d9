package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/estate-registry/models"
	"gorm.io/gorm"
)

// MarketerUserRepositoryImpl implements MarketerUserRepository
type MarketerUserRepositoryImpl struct {
	*BaseRepository[models.MarketerUser, models.MarketerUserFilter]
	*sequencedMembers
}

// NewMarketerUserRepository creates a new marketer repository
func NewMarketerUserRepository(db *gorm.DB) MarketerUserRepository {
	return &MarketerUserRepositoryImpl{
		BaseRepository:   NewBaseRepository[models.MarketerUser, models.MarketerUserFilter](db, applyMarketerUserFilter),
		sequencedMembers: newSequencedMembers(db, models.MarketerUser{}.TableName(), models.CounterKindMarketer),
	}
}

func applyMarketerUserFilter(db *gorm.DB, filter models.MarketerUserFilter) *gorm.DB {
	db = db.Where("company_id = ?", filter.CompanyID)
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", *filter.Email)
	}
	if filter.CompanyUID != nil {
		db = db.Where("company_uid = ?", *filter.CompanyUID)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ByCompanyAndID never returns a marketer of another company
func (r *MarketerUserRepositoryImpl) ByCompanyAndID(ctx context.Context, companyID, id uint) (*models.MarketerUser, error) {
	db := r.getDB(ctx)

	var marketer models.MarketerUser
	err := db.Where("company_id = ? AND id = ?", companyID, id).Last(&marketer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find marketer %d of company %d: %w", id, companyID, err)
	}
	return &marketer, nil
}

func (r *MarketerUserRepositoryImpl) ByCompanyAndEmail(ctx context.Context, companyID uint, email string) (*models.MarketerUser, error) {
	db := r.getDB(ctx)

	var marketer models.MarketerUser
	err := db.Where("company_id = ? AND email = ?", companyID, email).Last(&marketer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find marketer by email for company %d: %w", companyID, err)
	}
	return &marketer, nil
}
