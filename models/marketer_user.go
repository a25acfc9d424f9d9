package models

import (
	"time"

	"github.com/google/uuid"
)

// MarketerUser is a sales agent registered under one company
type MarketerUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_marketer_users_uuid" json:"uuid"`
	CompanyID uint      `gorm:"not null;index:idx_marketer_users_company_id;uniqueIndex:uk_marketer_users_company_sequence,priority:1;uniqueIndex:uk_marketer_users_company_email,priority:1" json:"company_id"`
	Company   *Company  `gorm:"foreignKey:CompanyID;references:ID;constraint:OnDelete:CASCADE" json:"-"`

	FullName     string  `gorm:"size:255;not null" json:"full_name"`
	Email        string  `gorm:"size:255;not null;uniqueIndex:uk_marketer_users_company_email,priority:2" json:"email"`
	Phone        *string `gorm:"size:20" json:"phone,omitempty"`
	PasswordHash *string `gorm:"size:255" json:"-"`

	CompanySequenceNumber *int64  `gorm:"uniqueIndex:uk_marketer_users_company_sequence,priority:2" json:"company_sequence_number,omitempty"`
	CompanyUID            *string `gorm:"size:64;uniqueIndex:uk_marketer_users_company_uid" json:"company_uid,omitempty"`

	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_marketer_users_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (MarketerUser) TableName() string {
	return "marketer_users"
}

// MarketerUserFilter represents filter criteria for marketer queries. CompanyID is always applied.
type MarketerUserFilter struct {
	CompanyID     uint
	ID            *uint
	UUID          *uuid.UUID
	Email         *string
	CompanyUID    *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
