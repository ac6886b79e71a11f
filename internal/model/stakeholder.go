package model

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
)

func (s InvitationStatus) IsValid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationDeclined:
		return true
	default:
		return false
	}
}

// Stakeholder is the invitation record of one reviewer on one proposal.
type Stakeholder struct {
	BaseModel
	ProposalID  uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_stakeholder_proposal_user" json:"proposal_id"`
	Proposal    *Proposal        `gorm:"foreignKey:ProposalID" json:"proposal,omitempty"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_stakeholder_proposal_user;index" json:"user_id"`
	User        *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status      InvitationStatus `gorm:"type:varchar(16);not null" json:"status"`
	InvitedBy   uuid.UUID        `gorm:"type:uuid;not null" json:"invited_by"`
	InvitedAt   time.Time        `gorm:"not null" json:"invited_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`
}

// TableName specifies the table name for GORM
func (Stakeholder) TableName() string {
	return "stakeholders"
}

// HasResponded reports whether the invitation reached a terminal state.
func (s *Stakeholder) HasResponded() bool {
	return s.Status != InvitationPending
}

// IsActive reports whether the stakeholder still takes part in the decision.
func (s *Stakeholder) IsActive() bool {
	return s.Status != InvitationDeclined
}

// StakeholderResponse for API responses
type StakeholderResponse struct {
	ID          uuid.UUID        `json:"id"`
	ProposalID  uuid.UUID        `json:"proposal_id"`
	Proposal    *ProposalSummary `json:"proposal,omitempty"`
	UserID      uuid.UUID        `json:"user_id"`
	User        *UserResponse    `json:"user,omitempty"`
	Status      InvitationStatus `json:"status"`
	InvitedBy   uuid.UUID        `json:"invited_by"`
	InvitedAt   time.Time        `json:"invited_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`
}

// ProposalSummary is the slice of a proposal shown next to an invitation.
type ProposalSummary struct {
	ID          uuid.UUID      `json:"id"`
	ProductName string         `json:"product_name"`
	Category    string         `json:"category"`
	Status      ProposalStatus `json:"status"`
}

// ToResponse converts Stakeholder to StakeholderResponse
func (s *Stakeholder) ToResponse() StakeholderResponse {
	response := StakeholderResponse{
		ID:          s.ID,
		ProposalID:  s.ProposalID,
		UserID:      s.UserID,
		Status:      s.Status,
		InvitedBy:   s.InvitedBy,
		InvitedAt:   s.InvitedAt,
		RespondedAt: s.RespondedAt,
	}
	if s.User != nil {
		user := s.User.ToResponse()
		response.User = &user
	}
	if s.Proposal != nil {
		response.Proposal = &ProposalSummary{
			ID:          s.Proposal.ID,
			ProductName: s.Proposal.ProductName,
			Category:    s.Proposal.Category,
			Status:      s.Proposal.Status,
		}
	}
	return response
}
