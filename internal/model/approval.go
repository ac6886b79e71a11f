package model

import (
	"time"

	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalPending          ApprovalStatus = "PENDING"
	ApprovalApproved         ApprovalStatus = "APPROVED"
	ApprovalChangesRequested ApprovalStatus = "CHANGES_REQUESTED"
	ApprovalRejected         ApprovalStatus = "REJECTED"
)

func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalChangesRequested, ApprovalRejected:
		return true
	default:
		return false
	}
}

// Approval is a stakeholder's recorded decision on a proposal.
type Approval struct {
	BaseModel
	ProposalID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_approval_proposal_user" json:"proposal_id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_approval_proposal_user" json:"user_id"`
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status     ApprovalStatus `gorm:"type:varchar(32);not null" json:"status"`
	Comments   string         `gorm:"type:text" json:"comments"`
	DecidedAt  *time.Time     `json:"decided_at,omitempty"`
}

// TableName specifies the table name for GORM
func (Approval) TableName() string {
	return "approvals"
}

// ApprovalResponse for API responses
type ApprovalResponse struct {
	ID         uuid.UUID      `json:"id"`
	ProposalID uuid.UUID      `json:"proposal_id"`
	UserID     uuid.UUID      `json:"user_id"`
	User       *UserResponse  `json:"user,omitempty"`
	Status     ApprovalStatus `json:"status"`
	Comments   string         `json:"comments"`
	DecidedAt  *time.Time     `json:"decided_at,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ToResponse converts Approval to ApprovalResponse
func (a *Approval) ToResponse() ApprovalResponse {
	response := ApprovalResponse{
		ID:         a.ID,
		ProposalID: a.ProposalID,
		UserID:     a.UserID,
		Status:     a.Status,
		Comments:   a.Comments,
		DecidedAt:  a.DecidedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.User != nil {
		user := a.User.ToResponse()
		response.User = &user
	}
	return response
}
