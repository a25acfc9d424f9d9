package models

import (
	"time"
)

// CompanySequence is the single source of truth for the next number of one (company, kind) pair.
// LastValue never decreases.
type CompanySequence struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	CompanyID uint        `gorm:"not null;uniqueIndex:uk_company_sequences_company_kind,priority:1" json:"company_id"`
	Company   *Company    `gorm:"foreignKey:CompanyID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Kind      CounterKind `gorm:"size:32;not null;uniqueIndex:uk_company_sequences_company_kind,priority:2" json:"kind"`
	LastValue int64       `gorm:"not null;default:0" json:"last_value"`
	CreatedAt time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CompanySequence) TableName() string {
	return "company_sequences"
}

// CompanySequenceFilter represents filter criteria for sequence queries
type CompanySequenceFilter struct {
	CompanyID *uint
	Kind      *CounterKind
}

// SequenceStats summarises the numbered rows of one kind inside one company
type SequenceStats struct {
	CompanyID      uint        `json:"company_id"`
	Kind           CounterKind `json:"kind"`
	EntityCount    int64       `json:"entity_count"`
	NumberedCount  int64       `json:"numbered_count"`
	MaxSequence    int64       `json:"max_sequence"`
	MissingUIDs    int64       `json:"missing_uids"`
	UnnumberedRows int64       `json:"unnumbered_rows"`
}

// SequencedRef points at one tenant member row for repair jobs
type SequencedRef struct {
	ID             uint
	SequenceNumber *int64
}
