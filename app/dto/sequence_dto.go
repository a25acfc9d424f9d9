package dto

// BackfillRequest selects the counters to raise. An empty Kinds list means every kind.
type BackfillRequest struct {
	CompanyID *uint    `json:"company_id,omitempty" validate:"omitempty,gt=0"`
	Kinds     []string `json:"kinds,omitempty" validate:"omitempty,dive,oneof=client marketer"`
}

type BackfillKindResult struct {
	Kind        string `json:"kind" example:"client"`
	Before      int64  `json:"before" example:"3"`
	ObservedMax int64  `json:"observed_max" example:"5"`
	After       int64  `json:"after" example:"5"`
	Raised      bool   `json:"raised" example:"true"`
}

type BackfillCompanyResult struct {
	CompanyID   uint                 `json:"company_id"`
	CompanyName string               `json:"company_name"`
	Kinds       []BackfillKindResult `json:"kinds"`
}

type BackfillResponse struct {
	Companies []BackfillCompanyResult `json:"companies"`
	Raised    int                     `json:"raised"`
}

type RepairUIDsRequest struct {
	CompanyID *uint `json:"company_id,omitempty" validate:"omitempty,gt=0"`
}

type RepairKindResult struct {
	Kind         string `json:"kind" example:"client"`
	Numbered     int    `json:"numbered" example:"2"`
	UIDsAssigned int    `json:"uids_assigned" example:"3"`
}

type RepairCompanyResult struct {
	CompanyID   uint               `json:"company_id"`
	CompanyName string             `json:"company_name"`
	Prefix      string             `json:"prefix"`
	Kinds       []RepairKindResult `json:"kinds"`
}

type RepairUIDsResponse struct {
	Companies []RepairCompanyResult `json:"companies"`
}

type SequenceAuditRequest struct {
	CompanyID *uint `json:"company_id,omitempty" query:"company_id" validate:"omitempty,gt=0"`
}

type SequenceAuditItem struct {
	CompanyID      uint   `json:"company_id"`
	CompanyName    string `json:"company_name"`
	Prefix         string `json:"prefix"`
	Kind           string `json:"kind"`
	CounterValue   int64  `json:"counter_value"`
	MaxSequence    int64  `json:"max_sequence"`
	EntityCount    int64  `json:"entity_count"`
	MissingUIDs    int64  `json:"missing_uids"`
	UnnumberedRows int64  `json:"unnumbered_rows"`
	CounterLag     int64  `json:"counter_lag"`
	Gaps           int64  `json:"gaps"`
	Status         string `json:"status" example:"ok"`
}

type SequenceAuditResponse struct {
	Items   []SequenceAuditItem `json:"items"`
	Healthy bool                `json:"healthy"`
}
