package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/estate-registry/models"
	"gorm.io/gorm"
)

// ClientUserRepositoryImpl implements ClientUserRepository
type ClientUserRepositoryImpl struct {
	*BaseRepository[models.ClientUser, models.ClientUserFilter]
	*sequencedMembers
}

// NewClientUserRepository creates a new client repository
func NewClientUserRepository(db *gorm.DB) ClientUserRepository {
	return &ClientUserRepositoryImpl{
		BaseRepository:   NewBaseRepository[models.ClientUser, models.ClientUserFilter](db, applyClientUserFilter),
		sequencedMembers: newSequencedMembers(db, models.ClientUser{}.TableName(), models.CounterKindClient),
	}
}

func applyClientUserFilter(db *gorm.DB, filter models.ClientUserFilter) *gorm.DB {
	db = db.Where("company_id = ?", filter.CompanyID)
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.MarketerID != nil {
		db = db.Where("marketer_id = ?", *filter.MarketerID)
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

// ByCompanyAndID never returns a client of another company
func (r *ClientUserRepositoryImpl) ByCompanyAndID(ctx context.Context, companyID, id uint) (*models.ClientUser, error) {
	db := r.getDB(ctx)

	var client models.ClientUser
	err := db.Where("company_id = ? AND id = ?", companyID, id).Last(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find client %d of company %d: %w", id, companyID, err)
	}
	return &client, nil
}

func (r *ClientUserRepositoryImpl) ByCompanyAndEmail(ctx context.Context, companyID uint, email string) (*models.ClientUser, error) {
	db := r.getDB(ctx)

	var client models.ClientUser
	err := db.Where("company_id = ? AND email = ?", companyID, email).Last(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find client by email for company %d: %w", companyID, err)
	}
	return &client, nil
}
