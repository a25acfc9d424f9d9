// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/amirphl/estate-registry/app/dto"
	"github.com/amirphl/estate-registry/models"
	"github.com/amirphl/estate-registry/repository"
	"github.com/amirphl/estate-registry/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ClientMetadata holds caller information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
	// AdminID is set on admin routes
	AdminID *uint `json:"admin_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetAdminID records the admin acting on the request
func (cm *ClientMetadata) SetAdminID(adminID uint) {
	cm.AdminID = &adminID
}

// auditEntry is one row to append to the audit log
type auditEntry struct {
	companyID   *uint
	action      string
	description string
	success     bool
	errMsg      *string
	metadata    map[string]any
}

// recordAudit appends an audit row. It runs in the transaction carried by ctx when there is one.
func recordAudit(ctx context.Context, auditRepo repository.AuditLogRepository, entry auditEntry, client *ClientMetadata) error {
	if auditRepo == nil {
		return nil
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	var adminID *uint
	if client != nil {
		ipAddress = client.IPAddress
		userAgent = client.UserAgent
		adminID = client.AdminID
	}

	audit := &models.AuditLog{
		CompanyID:    entry.companyID,
		AdminID:      adminID,
		Action:       entry.action,
		Description:  &entry.description,
		Success:      utils.ToPtr(entry.success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: entry.errMsg,
	}

	if len(entry.metadata) > 0 {
		if raw, err := json.Marshal(entry.metadata); err == nil {
			audit.Metadata = raw
		}
	}

	// Extract request ID from context if available
	if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
		audit.RequestID = &requestID
	} else if client != nil && client.RequestID != "" {
		audit.RequestID = &client.RequestID
	}

	return auditRepo.Save(ctx, audit)
}

// normalizePage validates page inputs and returns limit and offset
func normalizePage(page, pageSize int) (int, int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		return 0, 0, 0, NewBusinessError("INVALID_PAGE", "Page must be at least 1", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, 0, NewBusinessError("INVALID_PAGE_SIZE", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}
	return page, pageSize, (page - 1) * pageSize, nil
}

func paginationInfo(total int64, page, pageSize int) dto.PaginationInfo {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return dto.PaginationInfo{
		Total:      total,
		Page:       page,
		Limit:      pageSize,
		TotalPages: totalPages,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ToCompanyDTO converts a company model for API responses
func ToCompanyDTO(company models.Company) dto.CompanyDTO {
	return dto.CompanyDTO{
		ID:             company.ID,
		UUID:           company.UUID.String(),
		CompanyName:    company.Name,
		Slug:           company.Slug,
		UIDPrefix:      CompanyPrefix(&company),
		PrefixOverride: utils.IsTrue(company.PrefixOverride),
		Email:          company.Email,
		Phone:          company.Phone,
		Location:       company.Location,
		IsActive:       company.Active(),
		CreatedAt:      formatTime(company.CreatedAt),
	}
}

func ToClientDTO(client models.ClientUser) dto.ClientDTO {
	return dto.ClientDTO{
		ID:                    client.ID,
		UUID:                  client.UUID.String(),
		CompanyID:             client.CompanyID,
		MarketerID:            client.MarketerID,
		FullName:              client.FullName,
		Email:                 client.Email,
		Phone:                 client.Phone,
		CompanySequenceNumber: client.CompanySequenceNumber,
		CompanyUID:            client.CompanyUID,
		IsActive:              client.IsActive == nil || *client.IsActive,
		CreatedAt:             formatTime(client.CreatedAt),
	}
}

func ToMarketerDTO(marketer models.MarketerUser) dto.MarketerDTO {
	return dto.MarketerDTO{
		ID:                    marketer.ID,
		UUID:                  marketer.UUID.String(),
		CompanyID:             marketer.CompanyID,
		FullName:              marketer.FullName,
		Email:                 marketer.Email,
		Phone:                 marketer.Phone,
		CompanySequenceNumber: marketer.CompanySequenceNumber,
		CompanyUID:            marketer.CompanyUID,
		IsActive:              marketer.IsActive == nil || *marketer.IsActive,
		CreatedAt:             formatTime(marketer.CreatedAt),
	}
}

func ToAdminDTO(admin models.Admin) dto.AdminDTO {
	var lastLogin *string
	if admin.LastLoginAt != nil {
		lastLogin = utils.ToPtr(formatTime(*admin.LastLoginAt))
	}
	return dto.AdminDTO{
		ID:          admin.ID,
		UUID:        admin.UUID.String(),
		Username:    admin.Username,
		IsActive:    admin.IsActive,
		CreatedAt:   formatTime(admin.CreatedAt),
		LastLoginAt: lastLogin,
	}
}

func ToSessionDTO(accessToken, refreshToken string, ttl time.Duration) dto.SessionDTO {
	return dto.SessionDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(ttl.Seconds()),
		TokenType:    "Bearer",
		CreatedAt:    utils.UTCNowRFC3339(),
	}
}
