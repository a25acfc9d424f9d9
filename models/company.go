// Package models contains domain entities for the estate registry
package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is a tenant. Every client, marketer and sequence counter belongs to exactly one company.
type Company struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_companies_uuid" json:"uuid"`
	Name string    `gorm:"column:company_name;size:255;not null;uniqueIndex:uk_companies_name" json:"company_name"`
	Slug string    `gorm:"size:255;not null;uniqueIndex:uk_companies_slug" json:"slug"`

	// UIDPrefix is nil only for rows created before prefixes were stored
	UIDPrefix      *string `gorm:"size:16;uniqueIndex:uk_companies_uid_prefix" json:"uid_prefix,omitempty"`
	PrefixOverride *bool   `gorm:"default:false" json:"prefix_override"`

	Email    *string `gorm:"size:255" json:"email,omitempty"`
	Phone    *string `gorm:"size:20" json:"phone,omitempty"`
	Location *string `gorm:"size:255" json:"location,omitempty"`

	APIKeyHash *string `gorm:"size:255" json:"-"`
	IsActive   *bool   `gorm:"default:true;index:idx_companies_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_companies_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Company) TableName() string {
	return "companies"
}

// CompanyFilter represents filter criteria for company queries
type CompanyFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Name          *string
	Slug          *string
	UIDPrefix     *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Prefix returns the stored identifier prefix, or an empty string when none is stored
func (c *Company) Prefix() string {
	if c == nil || c.UIDPrefix == nil {
		return ""
	}
	return *c.UIDPrefix
}

func (c *Company) Active() bool {
	return c != nil && (c.IsActive == nil || *c.IsActive)
}
