package models

import "time"

// CompanyPrefixHistory records a prefix a company holds or once held.
// A prefix appears at most once, so it stays bound to its first company for good.
type CompanyPrefixHistory struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	CompanyID uint       `gorm:"not null;index:idx_company_prefix_history_company_id" json:"company_id"`
	Company   *Company   `gorm:"foreignKey:CompanyID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Prefix    string     `gorm:"size:16;not null;uniqueIndex:uk_company_prefix_history_prefix" json:"prefix"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (CompanyPrefixHistory) TableName() string {
	return "company_prefix_history"
}

// Retired reports whether the company has moved on to another prefix
func (h CompanyPrefixHistory) Retired() bool {
	return h.RetiredAt != nil
}
