package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CompanyID    *uint           `gorm:"index:idx_audit_company_id" json:"company_id,omitempty"`
	AdminID      *uint           `gorm:"index:idx_audit_admin_id" json:"admin_id,omitempty"`
	Action       string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionCompanyOnboarded   = "company_onboarded"
	AuditActionCompanyRemoved     = "company_removed"
	AuditActionCompanyActivated   = "company_activated"
	AuditActionCompanyDeactivated = "company_deactivated"
	AuditActionPrefixOverridden   = "prefix_overridden"
	AuditActionAPIKeyRotated      = "api_key_rotated"
	AuditActionClientRegistered   = "client_registered"
	AuditActionClientFailed       = "client_registration_failed"
	AuditActionMarketerRegistered = "marketer_registered"
	AuditActionMarketerFailed     = "marketer_registration_failed"
	AuditActionSequenceBackfilled = "sequence_backfilled"
	AuditActionUIDsRepaired       = "uids_repaired"
	AuditActionAdminLoginSuccess  = "admin_login_success"
	AuditActionAdminLoginFailed   = "admin_login_failed"
	AuditActionCompanyTokenIssued = "company_token_issued"
	AuditActionCompanyTokenDenied = "company_token_denied"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	CompanyID     *uint
	Action        *string
	Success       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
