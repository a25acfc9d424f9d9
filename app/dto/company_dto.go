package dto

type OnboardCompanyRequest struct {
	CompanyName string  `json:"company_name" validate:"required,min=2,max=255"`
	UIDPrefix   *string `json:"uid_prefix,omitempty" validate:"omitempty,min=2,max=12,alphanum"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Location    *string `json:"location,omitempty" validate:"omitempty,max=255"`
}

type CompanyDTO struct {
	ID             uint    `json:"id" example:"3"`
	UUID           string  `json:"uuid" example:"f47ac10b-58cc-4372-a567-0e02b2c3d479"`
	CompanyName    string  `json:"company_name" example:"Lamba Property Limited"`
	Slug           string  `json:"slug" example:"lamba-property-limited"`
	UIDPrefix      string  `json:"uid_prefix" example:"LPL"`
	PrefixOverride bool    `json:"prefix_override" example:"false"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Location       *string `json:"location,omitempty"`
	IsActive       bool    `json:"is_active" example:"true"`
	CreatedAt      string  `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

// OnboardCompanyResponse carries the API key in clear text. It is never shown again.
type OnboardCompanyResponse struct {
	Company CompanyDTO `json:"company"`
	APIKey  string     `json:"api_key"`
}

type OverridePrefixRequest struct {
	UIDPrefix string `json:"uid_prefix" validate:"required,min=2,max=12,alphanum"`
}

type RotateAPIKeyResponse struct {
	Company CompanyDTO `json:"company"`
	APIKey  string     `json:"api_key"`
}

type ListCompaniesRequest struct {
	PageRequest
	IsActive *bool `json:"is_active,omitempty" query:"is_active"`
}

type ListCompaniesResponse struct {
	Items      []CompanyDTO   `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

type CompanySequenceDTO struct {
	Kind      string `json:"kind" example:"client"`
	Tag       string `json:"tag" example:"CLT"`
	LastValue int64  `json:"last_value" example:"4"`
	NextUID   string `json:"next_uid" example:"LPL-CLT005"`
}

type CompanyDetailResponse struct {
	Company   CompanyDTO           `json:"company"`
	Sequences []CompanySequenceDTO `json:"sequences"`
}
