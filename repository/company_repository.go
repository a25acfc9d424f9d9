package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompanyRepositoryImpl implements CompanyRepository interface
type CompanyRepositoryImpl struct {
	*BaseRepository[models.Company, models.CompanyFilter]
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &CompanyRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Company, models.CompanyFilter](db, applyCompanyFilter),
	}
}

func applyCompanyFilter(db *gorm.DB, filter models.CompanyFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Name != nil {
		db = db.Where("company_name = ?", *filter.Name)
	}
	if filter.Slug != nil {
		db = db.Where("slug = ?", *filter.Slug)
	}
	if filter.UIDPrefix != nil {
		db = db.Where("uid_prefix = ?", *filter.UIDPrefix)
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

func (r *CompanyRepositoryImpl) first(ctx context.Context, query string, args ...any) (*models.Company, error) {
	db := r.getDB(ctx)

	var company models.Company
	err := db.Where(query, args...).Last(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find company: %w", err)
	}
	return &company, nil
}

func (r *CompanyRepositoryImpl) BySlug(ctx context.Context, slug string) (*models.Company, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *CompanyRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return r.first(ctx, "uuid = ?", id)
}

func (r *CompanyRepositoryImpl) ByUIDPrefix(ctx context.Context, prefix string) (*models.Company, error) {
	return r.first(ctx, "uid_prefix = ?", prefix)
}

// SlugsWithBase returns base itself and every "base-N" slug already in use
func (r *CompanyRepositoryImpl) SlugsWithBase(ctx context.Context, base string) ([]string, error) {
	db := r.getDB(ctx)

	var slugs []string
	err := db.Model(&models.Company{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list slugs for %q: %w", base, err)
	}
	return slugs, nil
}

// PrefixHolder returns the company that holds prefix now or held it before an override.
// It returns 0 when the prefix was never used.
func (r *CompanyRepositoryImpl) PrefixHolder(ctx context.Context, prefix string) (uint, error) {
	db := r.getDB(ctx)

	var rows []models.CompanyPrefixHistory
	if err := db.Where("prefix = ?", prefix).Limit(1).Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to read prefix history for %q: %w", prefix, err)
	}
	if len(rows) > 0 {
		return rows[0].CompanyID, nil
	}

	company, err := r.ByUIDPrefix(ctx, prefix)
	if err != nil || company == nil {
		return 0, err
	}
	return company.ID, nil
}

const reservePrefixSQL = `INSERT INTO company_prefix_history (company_id, prefix, retired_at, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (prefix) DO UPDATE
SET retired_at = CASE WHEN EXCLUDED.retired_at IS NULL THEN NULL ELSE company_prefix_history.retired_at END
WHERE company_prefix_history.company_id = EXCLUDED.company_id`

// ReservePrefix binds prefix to companyID in the prefix history. A retired reservation never
// clears a current one. It returns ErrDuplicate when another company holds or held the prefix.
func (r *CompanyRepositoryImpl) ReservePrefix(ctx context.Context, companyID uint, prefix string, retired bool) error {
	db := r.getDB(ctx)

	now := utils.UTCNow()
	var retiredAt *time.Time
	if retired {
		retiredAt = &now
	}

	result := db.Exec(reservePrefixSQL, companyID, prefix, retiredAt, now)
	if result.Error != nil {
		return fmt.Errorf("failed to reserve prefix %q for company %d: %w", prefix, companyID, translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("prefix %q belongs to another company: %w", prefix, ErrDuplicate)
	}
	return nil
}

// UpdatePrefix makes prefix the current one and retires whatever the company used before
func (r *CompanyRepositoryImpl) UpdatePrefix(ctx context.Context, companyID uint, prefix string, override bool) error {
	return WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		if err := r.ReservePrefix(txCtx, companyID, prefix, false); err != nil {
			return err
		}

		db := r.getDB(txCtx)
		now := utils.UTCNow()

		err := db.Model(&models.CompanyPrefixHistory{}).
			Where("company_id = ? AND prefix <> ? AND retired_at IS NULL", companyID, prefix).
			Update("retired_at", now).Error
		if err != nil {
			return fmt.Errorf("failed to retire previous prefix of company %d: %w", companyID, err)
		}

		err = db.Model(&models.Company{}).
			Where("id = ?", companyID).
			Updates(map[string]any{
				"uid_prefix":      prefix,
				"prefix_override": override,
				"updated_at":      now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update prefix of company %d: %w", companyID, translateError(err))
		}
		return nil
	})
}

func (r *CompanyRepositoryImpl) UpdateAPIKeyHash(ctx context.Context, companyID uint, hash string) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Company{}).
		Where("id = ?", companyID).
		Updates(map[string]any{
			"api_key_hash": hash,
			"updated_at":   utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update api key of company %d: %w", companyID, err)
	}
	return nil
}

func (r *CompanyRepositoryImpl) SetActive(ctx context.Context, companyID uint, active bool) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Company{}).
		Where("id = ?", companyID).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to set is_active of company %d: %w", companyID, err)
	}
	return nil
}

// Delete removes the company. Sequences, clients and marketers go with it through ON DELETE CASCADE.
func (r *CompanyRepositoryImpl) Delete(ctx context.Context, companyID uint) error {
	db := r.getDB(ctx)

	if err := db.Delete(&models.Company{}, companyID).Error; err != nil {
		return fmt.Errorf("failed to delete company %d: %w", companyID, err)
	}
	return nil
}
