package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ProposalStatus string

const (
	ProposalDraft            ProposalStatus = "DRAFT"
	ProposalPendingApproval  ProposalStatus = "PENDING_APPROVAL"
	ProposalApproved         ProposalStatus = "APPROVED"
	ProposalRejected         ProposalStatus = "REJECTED"
	ProposalChangesRequested ProposalStatus = "CHANGES_REQUESTED"
)

// ProposalStatuses lists every status in workflow order.
var ProposalStatuses = []ProposalStatus{
	ProposalDraft,
	ProposalPendingApproval,
	ProposalApproved,
	ProposalRejected,
	ProposalChangesRequested,
}

func (s ProposalStatus) IsValid() bool {
	for _, status := range ProposalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// PriorityObjective pairs an objective with its priority label (e.g. HIGH).
type PriorityObjective struct {
	Objective string `json:"objective" validate:"required"`
	Priority  string `json:"priority" validate:"required,oneof=HIGH MEDIUM LOW"`
}

// Constraints groups constraint lines by category (e.g. "regulatory" -> [...]).
type Constraints map[string][]string

// Proposal is a reformulation change request routed for review.
// Status is derived by the workflow package once the proposal leaves DRAFT.
type Proposal struct {
	BaseModel
	ProductName string          `gorm:"type:varchar(255);not null" json:"product_name"`
	CurrentCost decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"current_cost"`
	Category    string          `gorm:"type:varchar(100);not null;index" json:"category"`
	Formulation string          `gorm:"type:text" json:"formulation"`
	Status      ProposalStatus  `gorm:"type:varchar(32);not null;index" json:"status"`
	CreatedBy   uuid.UUID       `gorm:"type:uuid;not null;index" json:"created_by"`
	Creator     *User           `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`

	BusinessObjectives   datatypes.JSONSlice[string]            `gorm:"type:jsonb" json:"business_objectives"`
	PriorityObjectives   datatypes.JSONSlice[PriorityObjective] `gorm:"type:jsonb" json:"priority_objectives"`
	Constraints          datatypes.JSONType[Constraints]        `gorm:"type:jsonb" json:"constraints"`
	AcceptableChanges    datatypes.JSONSlice[string]            `gorm:"type:jsonb" json:"acceptable_changes"`
	NotAcceptableChanges datatypes.JSONSlice[string]            `gorm:"type:jsonb" json:"not_acceptable_changes"`
	FeasibilityLimits    datatypes.JSONSlice[string]            `gorm:"type:jsonb" json:"feasibility_limits"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// TableName specifies the table name for GORM
func (Proposal) TableName() string {
	return "proposals"
}

// IsOwnedBy reports whether userID created the proposal.
func (p *Proposal) IsOwnedBy(userID uuid.UUID) bool {
	return p.CreatedBy == userID
}

// ProposalResponse for API responses
type ProposalResponse struct {
	ID                   uuid.UUID           `json:"id"`
	ProductName          string              `json:"product_name"`
	CurrentCost          decimal.Decimal     `json:"current_cost"`
	Category             string              `json:"category"`
	Formulation          string              `json:"formulation"`
	Status               ProposalStatus      `json:"status"`
	CreatedBy            uuid.UUID           `json:"created_by"`
	Creator              *UserResponse       `json:"creator,omitempty"`
	BusinessObjectives   []string            `json:"business_objectives"`
	PriorityObjectives   []PriorityObjective `json:"priority_objectives"`
	Constraints          Constraints         `json:"constraints"`
	AcceptableChanges    []string            `json:"acceptable_changes"`
	NotAcceptableChanges []string            `json:"not_acceptable_changes"`
	FeasibilityLimits    []string            `json:"feasibility_limits"`
	SubmittedAt          *time.Time          `json:"submitted_at,omitempty"`
	DecidedAt            *time.Time          `json:"decided_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	UpdatedBy            string              `json:"updated_by"`
}

// ToResponse converts Proposal to ProposalResponse
func (p *Proposal) ToResponse() ProposalResponse {
	response := ProposalResponse{
		ID:                   p.ID,
		ProductName:          p.ProductName,
		CurrentCost:          p.CurrentCost,
		Category:             p.Category,
		Formulation:          p.Formulation,
		Status:               p.Status,
		CreatedBy:            p.CreatedBy,
		BusinessObjectives:   nonNil(p.BusinessObjectives),
		PriorityObjectives:   nonNil(p.PriorityObjectives),
		Constraints:          p.Constraints.Data(),
		AcceptableChanges:    nonNil(p.AcceptableChanges),
		NotAcceptableChanges: nonNil(p.NotAcceptableChanges),
		FeasibilityLimits:    nonNil(p.FeasibilityLimits),
		SubmittedAt:          p.SubmittedAt,
		DecidedAt:            p.DecidedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		UpdatedBy:            p.UpdatedBy,
	}
	if response.Constraints == nil {
		response.Constraints = Constraints{}
	}

	if p.Creator != nil {
		creator := p.Creator.ToResponse()
		response.Creator = &creator
	}

	return response
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
