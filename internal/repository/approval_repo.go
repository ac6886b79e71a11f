package repository

import (
	"context"

	"go-proposal-review/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApprovalRepository interface {
	Create(ctx context.Context, approval *model.Approval) error
	Update(ctx context.Context, approval *model.Approval) error
	FindByProposal(ctx context.Context, proposalID uuid.UUID) ([]model.Approval, error)
	FindByProposalAndUser(ctx context.Context, proposalID, userID uuid.UUID) (*model.Approval, error)

	// ResetByProposal puts every decision of the proposal back to PENDING.
	ResetByProposal(ctx context.Context, proposalID uuid.UUID, updatedBy string) error
}

type approvalRepo struct {
	db *gorm.DB
}

func NewApprovalRepo(db *gorm.DB) ApprovalRepository {
	return &approvalRepo{db}
}

func (r *approvalRepo) Create(ctx context.Context, approval *model.Approval) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(approval).Error, "create approval")
}

func (r *approvalRepo) Update(ctx context.Context, approval *model.Approval) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(approval).Error, "update approval")
}

func (r *approvalRepo) FindByProposal(ctx context.Context, proposalID uuid.UUID) ([]model.Approval, error) {
	var approvals []model.Approval
	if err := r.db.WithContext(ctx).Preload("User").
		Where("proposal_id = ?", proposalID).
		Order("created_at ASC").
		Find(&approvals).Error; err != nil {
		return nil, translate(err, "list approvals")
	}
	return approvals, nil
}

func (r *approvalRepo) FindByProposalAndUser(ctx context.Context, proposalID, userID uuid.UUID) (*model.Approval, error) {
	var approval model.Approval
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ? AND user_id = ?", proposalID, userID).
		First(&approval).Error; err != nil {
		return nil, translate(err, "find approval")
	}
	return &approval, nil
}

func (r *approvalRepo) ResetByProposal(ctx context.Context, proposalID uuid.UUID, updatedBy string) error {
	return translate(r.db.WithContext(ctx).Model(&model.Approval{}).
		Where("proposal_id = ?", proposalID).
		Updates(map[string]interface{}{
			"status":     model.ApprovalPending,
			"comments":   "",
			"decided_at": nil,
			"updated_by": updatedBy,
		}).Error, "reset approvals")
}
