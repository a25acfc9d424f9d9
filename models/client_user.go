package models

import (
	"time"

	"github.com/google/uuid"
)

// ClientUser is a buyer registered under one company
type ClientUser struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_client_users_uuid" json:"uuid"`
	CompanyID  uint      `gorm:"not null;index:idx_client_users_company_id;uniqueIndex:uk_client_users_company_sequence,priority:1;uniqueIndex:uk_client_users_company_email,priority:1" json:"company_id"`
	Company    *Company  `gorm:"foreignKey:CompanyID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	MarketerID *uint     `gorm:"index:idx_client_users_marketer_id" json:"marketer_id,omitempty"`

	FullName     string  `gorm:"size:255;not null" json:"full_name"`
	Email        string  `gorm:"size:255;not null;uniqueIndex:uk_client_users_company_email,priority:2" json:"email"`
	Phone        *string `gorm:"size:20" json:"phone,omitempty"`
	PasswordHash *string `gorm:"size:255" json:"-"`

	// Legacy rows may carry neither value until repaired
	CompanySequenceNumber *int64  `gorm:"uniqueIndex:uk_client_users_company_sequence,priority:2" json:"company_sequence_number,omitempty"`
	CompanyUID            *string `gorm:"size:64;uniqueIndex:uk_client_users_company_uid" json:"company_uid,omitempty"`

	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_client_users_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ClientUser) TableName() string {
	return "client_users"
}

// ClientUserFilter represents filter criteria for client queries. CompanyID is always applied.
type ClientUserFilter struct {
	CompanyID     uint
	ID            *uint
	UUID          *uuid.UUID
	MarketerID    *uint
	Email         *string
	CompanyUID    *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
