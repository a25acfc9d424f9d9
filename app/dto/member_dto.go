package dto

type RegisterClientRequest struct {
	FullName   string  `json:"full_name" validate:"required,min=2,max=255"`
	Email      string  `json:"email" validate:"required,email,max=255"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Password   *string `json:"password,omitempty" validate:"omitempty,min=8,max=100"`
	MarketerID *uint   `json:"marketer_id,omitempty" validate:"omitempty,gt=0"`
}

type RegisterMarketerRequest struct {
	FullName string  `json:"full_name" validate:"required,min=2,max=255"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=100"`
}

type ClientDTO struct {
	ID                    uint    `json:"id" example:"12"`
	UUID                  string  `json:"uuid"`
	CompanyID             uint    `json:"company_id" example:"3"`
	MarketerID            *uint   `json:"marketer_id,omitempty"`
	FullName              string  `json:"full_name" example:"Jane Doe"`
	Email                 string  `json:"email" example:"jane@example.com"`
	Phone                 *string `json:"phone,omitempty"`
	CompanySequenceNumber *int64  `json:"company_sequence_number,omitempty" example:"5"`
	CompanyUID            *string `json:"company_uid,omitempty" example:"LPL-CLT005"`
	IsActive              bool    `json:"is_active" example:"true"`
	CreatedAt             string  `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

type MarketerDTO struct {
	ID                    uint    `json:"id" example:"4"`
	UUID                  string  `json:"uuid"`
	CompanyID             uint    `json:"company_id" example:"3"`
	FullName              string  `json:"full_name" example:"John Roe"`
	Email                 string  `json:"email" example:"john@example.com"`
	Phone                 *string `json:"phone,omitempty"`
	CompanySequenceNumber *int64  `json:"company_sequence_number,omitempty" example:"2"`
	CompanyUID            *string `json:"company_uid,omitempty" example:"LPL-MKT002"`
	IsActive              bool    `json:"is_active" example:"true"`
	CreatedAt             string  `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

type ListMembersRequest struct {
	PageRequest
	MarketerID *uint `json:"marketer_id,omitempty" query:"marketer_id"`
}

type ListClientsResponse struct {
	Items      []ClientDTO    `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

type ListMarketersResponse struct {
	Items      []MarketerDTO  `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}
